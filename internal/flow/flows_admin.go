package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/vpnshop/core/logger"
	"github.com/m3rciful/vpnshop/internal/bridge"
	"github.com/m3rciful/vpnshop/internal/ledger"
	"github.com/m3rciful/vpnshop/internal/session"
)

const (
	stateEnterPair session.State = "enter-input"

	adminChatName = "admin-chat"
)

func adminAddServiceFlow() Flow {
	return Flow{
		Name:      "admin-add-service",
		Triggers:  []Trigger{OnChoice(keyAddService)},
		AdminOnly: true,
		Begin: func(t *Turn) error {
			item, ok := t.Catalog().Service(t.Event.Payload)
			if !ok {
				t.Reply(msgStaleChoice)
				return nil
			}
			t.Session.Set(varKind, item.ID)
			t.Session.Set(varLabel, item.Label)
			t.Goto(stateReceiveContent)
			return nil
		},
		Steps: map[session.State]Step{
			stateReceiveContent: {
				Accepts: []EventKind{EventText, EventFile, EventChoice, EventCommand},
				Prompt: func(t *Turn) {
					label, _ := t.Session.Get(varLabel)
					t.Reply(fmt.Sprintf(msgEnterServiceContent, label))
				},
				Handle: func(t *Turn) error {
					kind, _ := t.Session.Get(varKind)
					svc := ledger.Service{Kind: ledger.ServiceKind(kind)}
					switch {
					case t.Event.Kind == EventFile && t.Event.FileRef != "":
						svc.Content = t.Event.FileRef
						svc.IsFile = true
					case t.Event.Kind == EventText && t.Input() != "":
						svc.Content = t.Input()
					default:
						t.Reply(msgServiceInvalidInput)
						t.End()
						return nil
					}
					if err := t.Store().UpsertService(t.Context(), svc); err != nil {
						return err
					}
					logger.Info(t.Context(), "flow", "service.upsert",
						slog.String("kind", kind),
						slog.String("content", svc.ContentKind().String()),
					)
					if svc.IsFile {
						t.Reply(fmt.Sprintf(msgServiceSavedFile, svc.Content))
					} else {
						t.Reply(msgServiceSavedText)
					}
					t.End()
					return nil
				},
			},
		},
	}
}

func adminAddDiscountFlow() Flow {
	return Flow{
		Name:      "admin-add-discount",
		Triggers:  []Trigger{OnChoice(keyAddDiscount)},
		AdminOnly: true,
		Begin: func(t *Turn) error {
			t.Goto(stateEnterPair)
			return nil
		},
		Steps: map[session.State]Step{
			stateEnterPair: {
				Prompt: func(t *Turn) { t.Reply(msgEnterDiscount) },
				Handle: func(t *Turn) error {
					defer t.End()
					fields := strings.Fields(t.Input())
					if len(fields) != 2 {
						t.Reply(msgDiscountFormat)
						return nil
					}
					value, err := strconv.ParseInt(fields[1], 10, 64)
					if err != nil || value <= 0 {
						t.Reply(msgDiscountFormat)
						return nil
					}
					err = t.Store().InsertCode(t.Context(), ledger.DiscountCode{Code: fields[0], Value: value})
					switch {
					case errors.Is(err, ledger.ErrDuplicateCode):
						t.Reply(msgDiscountExists)
						return nil
					case err != nil:
						return err
					}
					t.Reply(msgDiscountCreated)
					return nil
				},
			},
		},
	}
}

func adminChargeFlow() Flow {
	return Flow{
		Name:      "admin-charge",
		Triggers:  []Trigger{OnChoice(keyCharge)},
		AdminOnly: true,
		Begin: func(t *Turn) error {
			t.Goto(stateEnterPair)
			return nil
		},
		Steps: map[session.State]Step{
			stateEnterPair: {
				Prompt: func(t *Turn) { t.Reply(msgEnterCharge) },
				Handle: func(t *Turn) error {
					defer t.End()
					uid, amount, ok := parsePair(t.Input())
					if !ok || amount <= 0 {
						t.Reply(msgChargeFormat)
						return nil
					}
					credited, err := t.Store().Credit(t.Context(), uid, amount)
					if err != nil {
						return err
					}
					if !credited {
						t.Reply(fmt.Sprintf(msgChargeNoUser, uid))
						return nil
					}
					logger.Info(t.Context(), "flow", "ledger.charge",
						slog.Int64("target_id", uid),
						slog.Int64("amount", amount),
					)
					t.Reply(msgCharged)
					t.Send(uid, fmt.Sprintf(msgChargedUser, amount, t.Catalog().Currency))
					return nil
				},
			},
		},
	}
}

func parsePair(raw string) (int64, int64, bool) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return 0, 0, false
	}
	a, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	b, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return a, b, true
}

func adminBroadcastFlow() Flow {
	return Flow{
		Name:      "admin-broadcast",
		Triggers:  []Trigger{OnChoice(keyBroadcast)},
		AdminOnly: true,
		Begin: func(t *Turn) error {
			t.Goto(stateEnterMessage)
			return nil
		},
		Steps: map[session.State]Step{
			stateEnterMessage: {
				Prompt: func(t *Turn) { t.Reply(msgEnterBroadcast) },
				Handle: func(t *Turn) error {
					ids, err := t.Store().UserIDs(t.Context())
					if err != nil {
						return err
					}
					t.Emit(Effect{
						Kind:       EffectBroadcast,
						Text:       t.Event.Payload,
						Recipients: ids,
						ReportTo:   t.AdminID(),
					})
					t.End()
					return nil
				},
			},
		},
	}
}

func adminSendItemFlow() Flow {
	return Flow{
		Name:      "admin-send-item",
		Triggers:  []Trigger{OnChoice(keySendItem)},
		AdminOnly: true,
		Begin: func(t *Turn) error {
			token := t.Event.Payload
			b, err := t.Bridge().Resolve(t.Context(), token)
			if errors.Is(err, bridge.ErrUnknownToken) {
				t.Reply(msgUnknownItemToken)
				return nil
			}
			if err != nil {
				return err
			}
			t.Session.Set(varToken, token)
			t.Session.SetInt64(varTargetID, b.UserID)
			t.Session.Set(varKind, b.ItemKind)
			t.Session.Set(varLabel, b.ItemLabel)
			t.Goto(stateReceiveDetails)
			return nil
		},
		Steps: map[session.State]Step{
			stateReceiveDetails: {
				Accepts: []EventKind{EventText, EventFile},
				Prompt: func(t *Turn) {
					kind, _ := t.Session.Get(varKind)
					label, _ := t.Session.Get(varLabel)
					target, _ := t.Session.Int64(varTargetID)
					t.Reply(fmt.Sprintf(msgEnterItemDetails, kind, label, target))
				},
				Handle: func(t *Turn) error {
					target, ok := t.Session.Int64(varTargetID)
					if !ok {
						return errors.New("send item target missing from session")
					}
					kind, _ := t.Session.Get(varKind)
					label, _ := t.Session.Get(varLabel)
					token, _ := t.Session.Get(varToken)

					e := Effect{
						Kind:      EffectText,
						To:        target,
						Text:      fmt.Sprintf(msgItemReady, label, kind, t.Event.Payload),
						ReportTo:  t.AdminID(),
						OnSuccess: fmt.Sprintf(msgItemDelivered, kind, target),
						OnFailure: fmt.Sprintf(msgItemFailed, kind, target),
						Release:   token,
					}
					if t.Event.Kind == EventFile {
						e.Kind = EffectFile
						e.FileRef = t.Event.FileRef
					}
					t.Emit(e)
					t.End()
					return nil
				},
			},
		},
	}
}

func adminChatFlow() Flow {
	return Flow{
		Name:      adminChatName,
		Triggers:  []Trigger{OnChoice(keyChatWithUser)},
		AdminOnly: true,
		Begin: func(t *Turn) error {
			if target, err := strconv.ParseInt(strings.TrimSpace(t.Event.Payload), 10, 64); err == nil && target > 0 {
				t.Session.SetInt64(varTargetID, target)
				t.Goto(stateChatting)
				return nil
			}
			t.Goto(stateEnterTargetID)
			return nil
		},
		Steps: map[session.State]Step{
			stateEnterTargetID: {
				Prompt: func(t *Turn) { t.Reply(msgEnterChatTarget) },
				Handle: func(t *Turn) error {
					target, err := strconv.ParseInt(t.Input(), 10, 64)
					if err != nil || target <= 0 {
						t.Retry(msgInvalidTargetID)
						return nil
					}
					t.Session.SetInt64(varTargetID, target)
					t.Goto(stateChatting)
					return nil
				},
			},
			stateChatting: {
				Accepts: []EventKind{EventText, EventFile},
				Prompt: func(t *Turn) {
					target, _ := t.Session.Int64(varTargetID)
					t.Reply(fmt.Sprintf(msgChatStarted, target))
				},
				Handle: func(t *Turn) error {
					target, ok := t.Session.Int64(varTargetID)
					if !ok {
						return errors.New("chat target missing from session")
					}
					e := Effect{
						Kind:      EffectText,
						To:        target,
						Text:      fmt.Sprintf(msgFromAdmin, t.Event.Payload),
						ReportTo:  t.AdminID(),
						OnSuccess: msgChatSent,
						OnFailure: msgChatFailed,
					}
					if t.Event.Kind == EventFile {
						e.Kind = EffectFile
						e.FileRef = t.Event.FileRef
					}
					t.Emit(e)
					t.Stay()
					return nil
				},
			},
		},
	}
}
