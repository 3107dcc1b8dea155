package flow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/vpnshop/internal/ledger"
)

func mainMenu(t *Turn) []Choice {
	choices := []Choice{
		{Label: labelBuyAccount, Key: keyBuyAccount},
		{Label: labelGetApp, Key: keyGetApp},
		{Label: labelDiscount, Key: keyDiscount},
		{Label: labelMyCredit, Key: keyMyCredit},
		{Label: labelTransfer, Key: keyTransfer},
		{Label: labelMyStatus, Key: keyMyStatus},
		{Label: labelServices, Key: keyServices},
		{Label: labelTopUp, Key: keyTopUp},
		{Label: labelSupport, Key: keySupport},
		{Label: labelAbout, Key: keyAbout},
	}
	if t.IsAdmin() {
		choices = append(choices, Choice{Label: labelAdminPanel, Key: keyAdminPanel})
	}
	return choices
}

func startAction() Action {
	return Action{
		Name:     "start",
		Triggers: []Trigger{OnCommand(restartCommand, "Open the main menu")},
		Run: func(t *Turn) error {
			t.Reply(msgWelcome, mainMenu(t)...)
			return nil
		},
	}
}

func aboutAction() Action {
	return Action{
		Name:     "about",
		Triggers: []Trigger{OnCommand("about", "About us"), OnChoice(keyAbout)},
		Run: func(t *Turn) error {
			t.Reply(t.Catalog().About)
			return nil
		},
	}
}

func creditAction() Action {
	return Action{
		Name:     "credit",
		Triggers: []Trigger{OnCommand("score", "Show your credit"), OnChoice(keyMyCredit)},
		Run: func(t *Turn) error {
			t.Reply(fmt.Sprintf(msgCredit, t.User.Credit, t.Catalog().Currency))
			return nil
		},
	}
}

func statusAction() Action {
	return Action{
		Name:     "status",
		Triggers: []Trigger{OnCommand("myinfo", "Show your account status"), OnChoice(keyMyStatus)},
		Run: func(t *Turn) error {
			t.Reply(formatAccount(msgStatus, t.User, t.Catalog().Currency))
			return nil
		},
	}
}

func formatAccount(format string, u ledger.User, currency string) string {
	discount := labelDiscountUnused
	if u.DiscountUsed {
		discount = labelDiscountUsed
	}
	approval := labelPendingStatus
	if u.Approved() {
		approval = labelApprovedStatus
	}
	return fmt.Sprintf(format, handleOf(u), u.ID, u.Credit, currency, discount, approval)
}

func adminPanelAction() Action {
	return Action{
		Name:      "admin-panel",
		Triggers:  []Trigger{OnCommand("admin", "Open the admin panel"), OnChoice(keyAdminPanel)},
		AdminOnly: true,
		Run: func(t *Turn) error {
			choices := []Choice{
				{Label: labelListPending, Key: keyListPending},
				{Label: labelAddDiscount, Key: keyAddDiscount},
			}
			for _, svc := range t.Catalog().Services {
				choices = append(choices, Choice{Label: "➕ " + svc.Label, Key: keyAddService, Payload: svc.ID})
			}
			choices = append(choices,
				Choice{Label: labelChargeUser, Key: keyCharge},
				Choice{Label: labelBroadcast, Key: keyBroadcast},
				Choice{Label: labelChatUser, Key: keyChatWithUser},
			)
			t.Reply(msgAdminPanel, choices...)
			return nil
		},
	}
}

func listPendingAction() Action {
	return Action{
		Name:      "list-pending",
		Triggers:  []Trigger{OnChoice(keyListPending), OnCommand("pending", "")},
		AdminOnly: true,
		Run: func(t *Turn) error {
			users, err := t.Store().PendingUsers(t.Context())
			if err != nil {
				return err
			}
			if len(users) == 0 {
				t.Reply(msgNoPending)
				return nil
			}
			currency := t.Catalog().Currency
			for _, u := range users {
				t.Reply(formatAccount(msgPendingUser, u, currency),
					Choice{Label: labelApprove, Key: keyApprove, Payload: strconv.FormatInt(u.ID, 10)})
			}
			return nil
		},
	}
}

func approveAction() Action {
	return Action{
		Name:      "approve",
		Triggers:  []Trigger{OnChoice(keyApprove)},
		AdminOnly: true,
		Run: func(t *Turn) error {
			uid, err := strconv.ParseInt(strings.TrimSpace(t.Event.Payload), 10, 64)
			if err != nil {
				t.Reply(msgStaleChoice)
				return nil
			}
			err = t.Store().SetApproval(t.Context(), uid, ledger.ApprovalApproved)
			if errors.Is(err, ledger.ErrUserNotFound) {
				t.Reply(msgUnknownRecipient)
				return nil
			}
			if err != nil {
				return err
			}
			t.Reply(fmt.Sprintf(msgApproved, uid))
			t.Send(uid, msgYouApproved)
			return nil
		},
	}
}

func exitChatAction() Action {
	return Action{
		Name:     "exit-chat",
		Triggers: []Trigger{OnCommand("exit_chat", "")},
		Run: func(t *Turn) error {
			if t.Session == nil || t.Session.Flow != adminChatName {
				t.Reply(msgNoActiveChat)
				return nil
			}
			t.Reply(msgChatExited)
			t.End()
			return nil
		},
	}
}
