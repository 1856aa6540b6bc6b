package modversion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mercurialworld/pochamoe-api/internal/logx"
	"github.com/mercurialworld/pochamoe-api/internal/pathparams"
)

// Context keys read by the access logger.
const (
	CtxModName       = "pochamoe.mod_name"
	CtxBSVersion     = "pochamoe.bs_version"
	CtxOutcome       = "pochamoe.outcome"
	CtxRejectionKind = "pochamoe.rejection_kind"
	CtxLocation      = "pochamoe.location"
)

const (
	SourceDecode   = "decode"
	SourceValidate = "validate"

	kindDomainViolation = "domain_violation"
	classDomain         = "domain"
)

// Resolver picks the compatible version for an accepted query.
type Resolver interface {
	Resolve(ctx context.Context, modName, bsVersion string) (string, error)
}

// StaticResolver answers every query with the same version.
type StaticResolver struct {
	Answer string
}

func (r StaticResolver) Resolve(_ context.Context, _, _ string) (string, error) {
	if strings.TrimSpace(r.Answer) == "" {
		return "", errors.New("no answer configured")
	}
	return r.Answer, nil
}

// RejectionRecorder receives one call per rejected request. source is
// "decode" or "validate".
type RejectionRecorder interface {
	RecordRejection(source, kind, class string, status int)
}

type Outcome string

const (
	OutcomeAnswered      Outcome = "answered"
	OutcomeDecodeFailed  Outcome = "decode_failed"
	OutcomeInvalid       Outcome = "invalid"
	OutcomeResolveFailed Outcome = "resolve_failed"
)

// Result is the response to one query before it is written. Exactly one of
// Text (answered, invalid) or Error (decode_failed, resolve_failed) carries
// the body.
type Result struct {
	Outcome    Outcome
	Status     int
	Text       string
	Error      *pathparams.APIError
	Violations Violations
	Params     ModParams
	Rejection  *pathparams.Rejection
}

type Handler struct {
	Validator *Validator
	Resolver  Resolver
	// Metrics is optional.
	Metrics RejectionRecorder
}

// Evaluate runs decode, validate and resolve over params. It has no side
// effects besides metrics and logging, so equal params give equal results.
func (h *Handler) Evaluate(ctx context.Context, params gin.Params) Result {
	var p ModParams
	if err := pathparams.Decode(params, &p); err != nil {
		return h.decodeFailed(err)
	}

	if err := h.Validator.Validate(p); err != nil {
		var vs Violations
		if !errors.As(err, &vs) {
			return h.decodeFailed(err)
		}
		h.record(SourceValidate, kindDomainViolation, classDomain, http.StatusBadRequest)
		return Result{
			Outcome:    OutcomeInvalid,
			Status:     http.StatusBadRequest,
			Text:       vs.String(),
			Violations: vs,
			Params:     p,
		}
	}

	resolver := h.Resolver
	if resolver == nil {
		resolver = StaticResolver{}
	}
	answer, err := resolver.Resolve(ctx, p.ModName, p.BSVersion)
	if err != nil {
		logx.Errorf("resolve mod=%s bs_version=%s: %v", p.ModName, p.BSVersion, err)
		return Result{
			Outcome: OutcomeResolveFailed,
			Status:  http.StatusInternalServerError,
			Error:   &pathparams.APIError{Status: http.StatusInternalServerError, Message: fmt.Sprintf("failed to resolve version: %v", err)},
			Params:  p,
		}
	}
	return Result{Outcome: OutcomeAnswered, Status: http.StatusOK, Text: answer, Params: p}
}

func (h *Handler) decodeFailed(err error) Result {
	rej := pathparams.AsRejection(err)
	apiErr := pathparams.Classify(rej)
	class := rej.Kind.Class()
	if class == pathparams.ClassServer {
		logx.Errorf("path rejection kind=%s: %s", rej.Kind, apiErr.Message)
	}
	h.record(SourceDecode, rej.Kind.String(), string(class), apiErr.Status)
	return Result{
		Outcome:   OutcomeDecodeFailed,
		Status:    apiErr.Status,
		Error:     &apiErr,
		Rejection: rej,
	}
}

func (h *Handler) record(source, kind, class string, status int) {
	if h.Metrics != nil {
		h.Metrics.RecordRejection(source, kind, class, status)
	}
}

// ServeHTTP is the gin handler for the version route.
func (h *Handler) ServeHTTP(c *gin.Context) {
	res := h.Evaluate(c.Request.Context(), c.Params)
	annotate(c, res)

	switch res.Outcome {
	case OutcomeAnswered, OutcomeInvalid:
		c.String(res.Status, res.Text)
	default:
		c.JSON(res.Status, res.Error)
	}
}

func annotate(c *gin.Context, res Result) {
	modName, bsVersion := res.Params.ModName, res.Params.BSVersion
	if res.Outcome == OutcomeDecodeFailed {
		modName, bsVersion = c.Param("mod_name"), c.Param("bs_version")
	}
	if modName != "" {
		c.Set(CtxModName, modName)
	}
	if bsVersion != "" {
		c.Set(CtxBSVersion, bsVersion)
	}
	c.Set(CtxOutcome, string(res.Outcome))
	if res.Rejection != nil {
		c.Set(CtxRejectionKind, res.Rejection.Kind.String())
	}
	if res.Error != nil && res.Error.Location != nil {
		c.Set(CtxLocation, *res.Error.Location)
	}
}
