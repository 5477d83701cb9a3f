package x402

import (
	"github.com/agentmesh/agentpay/pkg/catalog"
	"github.com/agentmesh/agentpay/pkg/types"
)

// SchemeExact is the only payment scheme this server issues: the proof must
// authorize exactly the quoted amount.
const SchemeExact = "exact"

// BuildRequirements produces the payment requirements for one access to the
// given service at the given resource path. Pure; the only failure mode is a
// misconfigured price, which Config validation at startup should have caught.
func BuildRequirements(cfg *Config, svc *catalog.ServiceDescriptor, resource string) (*types.PaymentRequirements, error) {
	amount, err := AmountToAssetUnits(svc.Price, cfg.AssetDecimals)
	if err != nil {
		return nil, err
	}

	return &types.PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           cfg.Network,
		MaxAmountRequired: amount.String(),
		Resource:          resource,
		Description:       svc.Description,
		MimeType:          "application/json",
		PayTo:             cfg.PayTo,
		MaxTimeoutSeconds: cfg.GetMaxTimeoutSeconds(),
		Asset:             cfg.Asset,
		Extra: map[string]any{
			"name":      svc.Name,
			"serviceId": svc.ID,
		},
	}, nil
}
