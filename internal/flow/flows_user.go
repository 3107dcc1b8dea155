package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/m3rciful/vpnshop/core/logger"
	"github.com/m3rciful/vpnshop/internal/bridge"
	"github.com/m3rciful/vpnshop/internal/ledger"
	"github.com/m3rciful/vpnshop/internal/session"
)

const (
	stateChooseType     session.State = "choose-type"
	stateChooseDevice   session.State = "choose-device"
	stateChooseService  session.State = "choose-service"
	stateEnterCode      session.State = "enter-code"
	stateEnterTargetID  session.State = "enter-target-id"
	stateEnterAmount    session.State = "enter-amount"
	stateEnterPayment   session.State = "enter-payment"
	stateEnterMessage   session.State = "enter-message"
	stateReceiveContent session.State = "receive-content"
	stateReceiveDetails session.State = "receive-details"
	stateChatting       session.State = "chatting"
)

var choiceOnly = []EventKind{EventChoice}

// requireApproval rejects unapproved users without touching the session.
func requireApproval(t *Turn) bool {
	if t.User.Approved() {
		return true
	}
	t.Reply(msgNotApproved)
	return false
}

func buyAccountFlow() Flow {
	return Flow{
		Name:     "buy-account",
		Triggers: []Trigger{OnChoice(keyBuyAccount), OnCommand("buy", "Buy a VPN account")},
		Begin: func(t *Turn) error {
			if requireApproval(t) {
				t.Goto(stateChooseType)
			}
			return nil
		},
		Steps: map[session.State]Step{
			stateChooseType: {
				Accepts: choiceOnly,
				Prompt: func(t *Turn) {
					items := t.Catalog().Accounts
					choices := make([]Choice, 0, len(items))
					for _, it := range items {
						choices = append(choices, Choice{Label: it.Label, Key: keyBuyType, Payload: it.ID})
					}
					t.Reply(msgChooseAccount, choices...)
				},
				Handle: func(t *Turn) error {
					if t.Event.Name != keyBuyType {
						t.Retry("")
						return nil
					}
					item, ok := t.Catalog().Account(t.Event.Payload)
					if !ok {
						t.Retry("")
						return nil
					}
					ctx := t.Context()
					if err := t.Store().SetApproval(ctx, t.User.ID, ledger.ApprovalPending); err != nil {
						return err
					}
					token, err := t.Bridge().Bind(ctx, bridge.Binding{
						UserID:    t.User.ID,
						ItemKind:  "account",
						ItemLabel: item.Label,
					})
					if err != nil {
						return err
					}
					t.ToAdmin(fmt.Sprintf(msgAdminAccountRequest, handleOf(t.User), t.User.ID, item.Label),
						Choice{Label: labelSendAccount, Key: keySendItem, Payload: token})
					t.Reply(msgAccountRequested)
					t.End()
					return nil
				},
			},
		},
	}
}

func getAppFlow() Flow {
	return Flow{
		Name:     "get-app",
		Triggers: []Trigger{OnChoice(keyGetApp), OnCommand("app", "Download the VPN client")},
		Begin: func(t *Turn) error {
			t.Goto(stateChooseDevice)
			return nil
		},
		Steps: map[session.State]Step{
			stateChooseDevice: {
				Accepts: choiceOnly,
				Prompt: func(t *Turn) {
					cat := t.Catalog()
					choices := make([]Choice, 0, len(cat.Apps)+1)
					for _, a := range cat.Apps {
						choices = append(choices, Choice{Label: a.Label, Key: keyAppType, Payload: a.ID})
					}
					choices = append(choices, Choice{Label: cat.Guide.Label, Key: keyAppType, Payload: guideID})
					t.Reply(msgChooseDevice, choices...)
				},
				Handle: func(t *Turn) error {
					if t.Event.Name != keyAppType {
						t.Retry("")
						return nil
					}
					cat := t.Catalog()
					if t.Event.Payload == guideID {
						media := cat.GuideMedia()
						if len(media) == 0 {
							t.Reply(msgGuideUnavailable)
							return nil
						}
						t.ReplyMedia(media)
						if cat.Guide.Note != "" {
							t.Reply(cat.Guide.Note)
						}
						return nil
					}
					link, ok := cat.App(t.Event.Payload)
					if !ok {
						t.Retry("")
						return nil
					}
					t.Reply(link.URL)
					return nil
				},
			},
		},
	}
}

func getServiceFlow() Flow {
	return Flow{
		Name:     "get-service",
		Triggers: []Trigger{OnChoice(keyServices), OnCommand("services", "Get VPN services")},
		Begin: func(t *Turn) error {
			if requireApproval(t) {
				t.Goto(stateChooseService)
			}
			return nil
		},
		Steps: map[session.State]Step{
			stateChooseService: {
				Accepts: choiceOnly,
				Prompt: func(t *Turn) {
					items := t.Catalog().Services
					choices := make([]Choice, 0, len(items))
					for _, it := range items {
						choices = append(choices, Choice{Label: it.Label, Key: keyServiceType, Payload: it.ID})
					}
					t.Reply(msgChooseService, choices...)
				},
				Handle: func(t *Turn) error {
					if t.Event.Name != keyServiceType {
						t.Retry("")
						return nil
					}
					item, ok := t.Catalog().Service(t.Event.Payload)
					if !ok {
						t.Retry("")
						return nil
					}
					ctx := t.Context()
					svc, err := t.Store().Service(ctx, ledger.ServiceKind(item.ID))
					switch {
					case errors.Is(err, ledger.ErrServiceNotFound):
						logUnavailable(t, item.ID, "not_configured")
						t.Reply(msgUnavailable)
						return nil
					case err != nil:
						return err
					case svc.Content == "":
						logUnavailable(t, item.ID, "content_missing")
						t.Reply(msgUnavailable)
						return nil
					}
					if err := t.Store().SetApproval(ctx, t.User.ID, ledger.ApprovalPending); err != nil {
						return err
					}
					if svc.ContentKind() == ledger.ContentFile {
						t.ReplyFile(svc.Content, item.Label)
					} else {
						t.Reply(svc.Content)
					}
					return nil
				},
			},
		},
	}
}

func logUnavailable(t *Turn, kind, reason string) {
	logger.Info(t.Context(), "flow", "service.unavailable",
		slog.Int64("user_id", t.User.ID),
		slog.String("kind", kind),
		slog.String("reason", reason),
	)
}

func activateDiscountFlow() Flow {
	return Flow{
		Name:     "activate-discount",
		Triggers: []Trigger{OnChoice(keyDiscount), OnCommand("discount", "Activate a discount code")},
		Begin: func(t *Turn) error {
			if t.User.DiscountUsed {
				t.Reply(msgDiscountUsed)
				return nil
			}
			t.Goto(stateEnterCode)
			return nil
		},
		Steps: map[session.State]Step{
			stateEnterCode: {
				Prompt: func(t *Turn) { t.Reply(msgEnterCode) },
				Handle: func(t *Turn) error {
					value, err := t.Store().RedeemDiscount(t.Context(), t.User.ID, t.Input())
					switch {
					case errors.Is(err, ledger.ErrDiscountUsed):
						t.Reply(msgDiscountUsed)
					case errors.Is(err, ledger.ErrCodeNotFound):
						t.Reply(msgDiscountInvalid)
					case err != nil:
						return err
					default:
						t.Reply(fmt.Sprintf(msgDiscountCredited, value, t.Catalog().Currency))
					}
					t.End()
					return nil
				},
			},
		},
	}
}

func transferCreditFlow() Flow {
	return Flow{
		Name:     "transfer-credit",
		Triggers: []Trigger{OnChoice(keyTransfer), OnCommand("transfer", "Transfer credit to another user")},
		Begin: func(t *Turn) error {
			t.Goto(stateEnterTargetID)
			return nil
		},
		Steps: map[session.State]Step{
			stateEnterTargetID: {
				Prompt: func(t *Turn) { t.Reply(msgEnterTargetID) },
				Handle: func(t *Turn) error {
					target, err := strconv.ParseInt(t.Input(), 10, 64)
					if err != nil || target <= 0 {
						t.Retry(msgInvalidTargetID)
						return nil
					}
					if target == t.User.ID {
						t.Retry(msgSelfTransfer)
						return nil
					}
					t.Session.SetInt64(varTargetID, target)
					t.Goto(stateEnterAmount)
					return nil
				},
			},
			stateEnterAmount: {
				Prompt: func(t *Turn) { t.Reply(msgEnterAmount) },
				Handle: func(t *Turn) error {
					amount, err := strconv.ParseInt(t.Input(), 10, 64)
					if err != nil || amount <= 0 {
						t.Retry(msgInvalidAmount)
						return nil
					}
					target, ok := t.Session.Int64(varTargetID)
					if !ok {
						return errors.New("transfer target missing from session")
					}
					ctx := t.Context()
					err = t.Store().Transfer(ctx, t.User.ID, target, amount)
					switch {
					case errors.Is(err, ledger.ErrInsufficientFunds):
						t.Reply(msgInsufficientFunds)
					case errors.Is(err, ledger.ErrUserNotFound):
						t.Reply(msgUnknownRecipient)
					case errors.Is(err, ledger.ErrSelfTransfer):
						t.Reply(msgSelfTransfer)
					case err != nil:
						return err
					default:
						currency := t.Catalog().Currency
						t.Reply(msgTransferDone)
						if u, uerr := t.Store().User(ctx, t.User.ID); uerr == nil {
							t.Reply(fmt.Sprintf(msgCredit, u.Credit, currency))
						} else {
							logger.Warn(ctx, "flow", "transfer.balance",
								slog.Int64("user_id", t.User.ID),
								slog.String("err", uerr.Error()),
							)
						}
						t.Send(target, fmt.Sprintf(msgTransferReceived, amount, currency, t.User.ID))
					}
					t.End()
					return nil
				},
			},
		},
	}
}

func topUpFlow() Flow {
	return Flow{
		Name:     "top-up",
		Triggers: []Trigger{OnChoice(keyTopUp), OnCommand("topup", "Request a credit top-up")},
		Begin: func(t *Turn) error {
			t.Goto(stateEnterPayment)
			return nil
		},
		Steps: map[session.State]Step{
			stateEnterPayment: {
				Accepts: []EventKind{EventText, EventFile},
				Prompt:  func(t *Turn) { t.Reply(msgEnterPayment) },
				Handle: func(t *Turn) error {
					if err := t.Store().SetApproval(t.Context(), t.User.ID, ledger.ApprovalPending); err != nil {
						return err
					}
					text := fmt.Sprintf(msgAdminTopUp, handleOf(t.User), t.User.ID, t.Input())
					if t.Event.Kind == EventFile {
						t.Emit(Effect{Kind: EffectFile, To: t.AdminID(), FileRef: t.Event.FileRef, Text: text})
					} else {
						t.ToAdmin(text)
					}
					t.Reply(msgTopUpReceived)
					t.End()
					return nil
				},
			},
		},
	}
}

func supportMessageFlow() Flow {
	return Flow{
		Name:     "support-message",
		Triggers: []Trigger{OnChoice(keySupport), OnCommand("support", "Message support")},
		Begin: func(t *Turn) error {
			t.Goto(stateEnterMessage)
			return nil
		},
		Steps: map[session.State]Step{
			stateEnterMessage: {
				Prompt: func(t *Turn) { t.Reply(msgEnterSupport) },
				Handle: func(t *Turn) error {
					t.ToAdmin(fmt.Sprintf(msgAdminSupport, handleOf(t.User), t.User.ID, t.Input()),
						Choice{Label: labelReply, Key: keyChatWithUser, Payload: strconv.FormatInt(t.User.ID, 10)})
					t.Reply(msgSupportSent)
					t.End()
					return nil
				},
			},
		},
	}
}

func handleOf(u ledger.User) string {
	if u.Username == "" {
		return "N/A"
	}
	return "@" + u.Username
}
