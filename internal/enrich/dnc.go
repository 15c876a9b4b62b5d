package enrich

import (
	"context"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/pkg/apiclient"
	"github.com/sells-group/lead-enricher/pkg/dnc"
	"github.com/sells-group/lead-enricher/pkg/token"
)

// DNCErrorReason is the reason reported when a DNC check fails open.
const DNCErrorReason = "Error checking DNC"

// FailOpen is the status assumed when the DNC status is unknown.
func FailOpen() model.DNCStatus {
	return model.DNCStatus{IsDoNotCall: false, CanContact: true, Reason: DNCErrorReason}
}

// CheckDNC returns the DNC status of phone. It never fails: an invalid phone,
// transport error or non-2xx answer yields FailOpen.
func CheckDNC(ctx context.Context, checker dnc.Client, phone, tok string) model.DNCStatus {
	st, err := queryDNC(ctx, checker, phone, tok)
	if err != nil {
		zap.L().Warn("enrich: dnc check failed open", zap.Error(err))
		return FailOpen()
	}
	return st
}

func queryDNC(ctx context.Context, checker dnc.Client, phone, tok string) (model.DNCStatus, error) {
	n := NormalizePhone(phone)
	if n == "" {
		return model.DNCStatus{}, eris.Errorf("enrich: invalid phone %q", phone)
	}
	if checker == nil {
		return model.DNCStatus{}, eris.New("enrich: no dnc client")
	}
	s, err := checker.Check(ctx, n, tok)
	if err != nil {
		return model.DNCStatus{}, eris.Wrap(err, "enrich: dnc check")
	}
	return model.DNCStatus{
		IsDoNotCall: s.IsDoNotCall,
		CanContact:  s.ContactStatus.CanContact,
		Reason:      s.ContactStatus.Reason,
	}, nil
}

// DNCChecker pairs a DNC client with a token source. It is shared by the
// inline pipeline stage and the standalone dnc command.
type DNCChecker struct {
	client dnc.Client
	tokens token.Provider
}

// NewDNCChecker creates a DNCChecker.
func NewDNCChecker(client dnc.Client, tokens token.Provider) *DNCChecker {
	return &DNCChecker{client: client, tokens: tokens}
}

// Check returns the DNC status for a 10-digit phone. The status is nil when
// no token could be obtained, in which case no check was made. A rejected
// token is refreshed once before failing open.
func (c *DNCChecker) Check(ctx context.Context, phone string) (*model.DNCStatus, model.StageOutcome) {
	if c.tokens == nil {
		return nil, skipped("no token")
	}
	tok, err := c.tokens.Token(ctx, false)
	if err != nil || tok == "" {
		zap.L().Warn("enrich: dnc token unavailable", zap.Error(err))
		return nil, skipped("no token")
	}

	st, err := queryDNC(ctx, c.client, phone, tok)
	if isUnauthorized(err) {
		if tok, err = c.tokens.Token(ctx, true); err == nil {
			st, err = queryDNC(ctx, c.client, phone, tok)
		}
	}
	if err != nil {
		zap.L().Warn("enrich: dnc check failed open", zap.String("phone", phone), zap.Error(err))
		fo := FailOpen()
		return &fo, complete(DNCErrorReason)
	}
	return &st, complete(st.Reason)
}

func isUnauthorized(err error) bool {
	var se *apiclient.StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden
}
