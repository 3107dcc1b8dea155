package flow

import "fmt"

// Builtin returns a registry holding every storefront flow and action.
func Builtin() (*Registry, error) {
	r := NewRegistry()
	flows := []Flow{
		buyAccountFlow(),
		getAppFlow(),
		getServiceFlow(),
		activateDiscountFlow(),
		transferCreditFlow(),
		topUpFlow(),
		supportMessageFlow(),
		adminAddServiceFlow(),
		adminAddDiscountFlow(),
		adminChargeFlow(),
		adminBroadcastFlow(),
		adminSendItemFlow(),
		adminChatFlow(),
	}
	for _, f := range flows {
		if err := r.RegisterFlow(f); err != nil {
			return nil, fmt.Errorf("register builtin flows: %w", err)
		}
	}
	actions := []Action{
		startAction(),
		aboutAction(),
		creditAction(),
		statusAction(),
		adminPanelAction(),
		listPendingAction(),
		approveAction(),
		exitChatAction(),
	}
	for _, a := range actions {
		if err := r.RegisterAction(a); err != nil {
			return nil, fmt.Errorf("register builtin actions: %w", err)
		}
	}
	return r, nil
}
