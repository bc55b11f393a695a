package service

import (
	"github.com/noah-isme/sk-governance-api/internal/governance"
	appErrors "github.com/noah-isme/sk-governance-api/pkg/errors"
)

// RuleDetails is the error detail payload for rejected term operations.
type RuleDetails struct {
	Rule    string   `json:"rule"`
	Reasons []string `json:"reasons"`
}

// fromRuleError maps governance rejections onto HTTP-aware errors. Validation failures
// become 400 with every reason listed; conflicts become 409.
func fromRuleError(err error) error {
	re, ok := governance.AsRuleError(err)
	if !ok {
		return err
	}
	details := RuleDetails{Rule: re.Rule, Reasons: re.Reasons}
	if re.Kind == governance.KindValidation {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "term validation failed"), details)
	}
	base := appErrors.ErrConflict
	if re.Rule == governance.RuleActiveExists {
		base = appErrors.ErrActiveTermExists
	}
	message := re.Error()
	if len(re.Reasons) > 0 {
		message = re.Reasons[0]
	}
	return appErrors.WithDetails(appErrors.Clone(base, message), details)
}

func internal(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
