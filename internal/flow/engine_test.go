package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/m3rciful/vpnshop/internal/bridge"
	"github.com/m3rciful/vpnshop/internal/ledger"
	"github.com/m3rciful/vpnshop/internal/session"
)

const testAdmin int64 = 999

type sentMsg struct {
	kind    string
	to      int64
	text    string
	choices []Choice
	file    string
	media   []MediaItem
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMsg
	fail map[int64]bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{fail: make(map[int64]bool)}
}

func (f *fakeMessenger) record(m sentMsg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[m.to] {
		return errors.New("telegram: Forbidden: bot was blocked by the user (403)")
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeMessenger) SendText(_ context.Context, to int64, text string, choices []Choice) error {
	return f.record(sentMsg{kind: "text", to: to, text: text, choices: choices})
}

func (f *fakeMessenger) SendFile(_ context.Context, to int64, ref, caption string) error {
	return f.record(sentMsg{kind: "file", to: to, text: caption, file: ref})
}

func (f *fakeMessenger) SendMediaGroup(_ context.Context, to int64, items []MediaItem) error {
	return f.record(sentMsg{kind: "media", to: to, media: items})
}

func (f *fakeMessenger) to(id int64) []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMsg
	for _, m := range f.sent {
		if m.to == id {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeMessenger) lastText(id int64) string {
	msgs := f.to(id)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].text
}

type harness struct {
	engine *Engine
	store  ledger.Store
	bridge bridge.Registry
	msgr   *fakeMessenger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, ledger.NewMemoryStore())
}

func newHarnessWithStore(t *testing.T, store ledger.Store) *harness {
	t.Helper()
	reg, err := Builtin()
	if err != nil {
		t.Fatalf("builtin registry: %v", err)
	}
	h := &harness{store: store, bridge: bridge.NewMemoryRegistry(), msgr: newFakeMessenger()}
	h.engine, err = NewEngine(Options{
		Store:     store,
		Sessions:  session.NewTable(nil),
		Bridge:    h.bridge,
		Registry:  reg,
		Messenger: h.msgr,
		AdminID:   testAdmin,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return h
}

func (h *harness) advance(t *testing.T, ev Event) Outcome {
	t.Helper()
	out, err := h.engine.Advance(context.Background(), ev)
	if err != nil {
		t.Fatalf("advance %+v: %v", ev, err)
	}
	return out
}

func (h *harness) handle(t *testing.T, ev Event) {
	t.Helper()
	if err := h.engine.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle %+v: %v", ev, err)
	}
}

func (h *harness) user(t *testing.T, id, credit int64, approved bool) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.store.EnsureUser(ctx, id, fmt.Sprintf("user%d", id)); err != nil {
		t.Fatalf("ensure %d: %v", id, err)
	}
	if credit > 0 {
		if _, err := h.store.Credit(ctx, id, credit); err != nil {
			t.Fatalf("credit %d: %v", id, err)
		}
	}
	if approved {
		if err := h.store.SetApproval(ctx, id, ledger.ApprovalApproved); err != nil {
			t.Fatalf("approve %d: %v", id, err)
		}
	}
}

func (h *harness) account(t *testing.T, id int64) ledger.User {
	t.Helper()
	u, err := h.store.User(context.Background(), id)
	if err != nil {
		t.Fatalf("user %d: %v", id, err)
	}
	return u
}

func texts(effects []Effect) []string {
	out := make([]string, 0, len(effects))
	for _, e := range effects {
		out = append(out, e.Text)
	}
	return out
}

func TestTransferCreditScenario(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 20000, false)
	h.user(t, 2, 1000, false)

	out := h.advance(t, Pick(1, keyTransfer, ""))
	if out.Route != RouteEntry || out.Session == nil || out.Session.State != stateEnterTargetID {
		t.Fatalf("entry outcome = %+v", out)
	}
	out = h.advance(t, Text(1, "2"))
	if out.Session == nil || out.Session.State != stateEnterAmount {
		t.Fatalf("after target: %+v", out)
	}
	out = h.advance(t, Text(1, "5000"))
	if out.Route != RouteComplete || out.Session != nil {
		t.Fatalf("after amount: %+v", out)
	}
	if a, b := h.account(t, 1).Credit, h.account(t, 2).Credit; a != 15000 || b != 6000 {
		t.Fatalf("balances = %d/%d, want 15000/6000", a, b)
	}
	var notified bool
	for _, e := range out.Effects {
		if e.To == 2 && strings.Contains(e.Text, "5000") {
			notified = true
		}
	}
	if !notified {
		t.Fatalf("recipient not notified: %v", texts(out.Effects))
	}
}

func TestTransferInsufficientFundsEndsSession(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 100, false)
	h.user(t, 2, 0, false)

	h.advance(t, Pick(1, keyTransfer, ""))
	h.advance(t, Text(1, "2"))
	out := h.advance(t, Text(1, "101"))
	if out.Session != nil {
		t.Fatalf("session survived: %+v", out.Session)
	}
	if len(out.Effects) != 1 || out.Effects[0].Text != msgInsufficientFunds {
		t.Fatalf("effects = %v", texts(out.Effects))
	}
	if a, b := h.account(t, 1).Credit, h.account(t, 2).Credit; a != 100 || b != 0 {
		t.Fatalf("balances changed: %d/%d", a, b)
	}
}

func TestTransferUnknownRecipient(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 100, false)

	h.advance(t, Pick(1, keyTransfer, ""))
	h.advance(t, Text(1, "4242"))
	out := h.advance(t, Text(1, "10"))
	if got := texts(out.Effects); len(got) != 1 || got[0] != msgUnknownRecipient {
		t.Fatalf("effects = %v", got)
	}
	if h.account(t, 1).Credit != 100 {
		t.Fatal("sender debited for unknown recipient")
	}
}

func TestParseFailureRepromptsSameState(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 100, false)
	h.advance(t, Pick(1, keyTransfer, ""))

	out := h.advance(t, Text(1, "abc"))
	if out.Route != RouteReprompt || out.Session == nil || out.Session.State != stateEnterTargetID {
		t.Fatalf("outcome = %+v", out)
	}
	got := texts(out.Effects)
	if len(got) != 2 || got[0] != msgInvalidTargetID || got[1] != msgEnterTargetID {
		t.Fatalf("effects = %v", got)
	}

	out = h.advance(t, Text(1, "1"))
	if out.Session.State != stateEnterTargetID || texts(out.Effects)[0] != msgSelfTransfer {
		t.Fatalf("own id accepted: %+v", out)
	}

	h.user(t, 2, 0, false)
	h.advance(t, Text(1, "2"))
	out = h.advance(t, Text(1, "-5"))
	if out.Route != RouteReprompt || out.Session.State != stateEnterAmount {
		t.Fatalf("negative amount outcome = %+v", out)
	}
}

func TestUnacceptedShapeReprompts(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 0, true)
	h.advance(t, Pick(1, keyBuyAccount, ""))

	out := h.advance(t, Text(1, "1 month please"))
	if out.Route != RouteReprompt || out.Session == nil || out.Session.State != stateChooseType {
		t.Fatalf("outcome = %+v", out)
	}
	if len(out.Effects) != 1 || out.Effects[0].Text != msgChooseAccount || len(out.Effects[0].Choices) != 4 {
		t.Fatalf("effects = %+v", out.Effects)
	}
}

func TestRestartClearsSession(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 0, false)
	h.advance(t, Pick(1, keyTransfer, ""))

	out := h.advance(t, Command(1, "/start", ""))
	if out.Route != RouteRestart || out.Session != nil {
		t.Fatalf("restart outcome = %+v", out)
	}
	if len(out.Effects) != 1 || out.Effects[0].Text != msgWelcome {
		t.Fatalf("effects = %v", texts(out.Effects))
	}
	if _, ok, _ := h.engine.sessions.Get(context.Background(), 1); ok {
		t.Fatal("session still stored after restart")
	}

	out = h.advance(t, Text(1, "2"))
	if out.Route != RouteFallback {
		t.Fatalf("text after restart routed to %s", out.Route)
	}
}

func TestNewEntryCancelsPriorSession(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 0, false)
	h.advance(t, Pick(1, keyTransfer, ""))

	out := h.advance(t, Pick(1, keySupport, ""))
	if out.Session == nil || out.Session.Flow != "support-message" {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestActionKeepsActiveSession(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 700, false)
	h.advance(t, Pick(1, keyTransfer, ""))

	out := h.advance(t, Pick(1, keyMyCredit, ""))
	if out.Route != RouteAction || out.Session == nil || out.Session.State != stateEnterTargetID {
		t.Fatalf("outcome = %+v", out)
	}
	if want := fmt.Sprintf(msgCredit, 700, "toman"); out.Effects[0].Text != want {
		t.Fatalf("credit text = %q, want %q", out.Effects[0].Text, want)
	}
}

func TestStaleChoiceFallback(t *testing.T) {
	h := newHarness(t)
	out := h.advance(t, Pick(1, keyBuyType, "1_month"))
	if out.Route != RouteFallback || out.Effects[0].Text != msgStaleChoice {
		t.Fatalf("outcome = %+v", out)
	}
	out = h.advance(t, Text(1, "hello"))
	if out.Route != RouteFallback || out.Effects[0].Text != msgFallback {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestUnapprovedPurchaseRejected(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 0, false)

	out := h.advance(t, Pick(1, keyBuyAccount, ""))
	if out.Session != nil {
		t.Fatalf("session created for unapproved user: %+v", out.Session)
	}
	if len(out.Effects) != 1 || out.Effects[0].Text != msgNotApproved {
		t.Fatalf("effects = %v", texts(out.Effects))
	}
	if h.account(t, 1).Approval != ledger.ApprovalPending {
		t.Fatal("approval changed")
	}

	out = h.advance(t, Pick(1, keyServices, ""))
	if out.Session != nil || out.Effects[0].Text != msgNotApproved {
		t.Fatalf("get-service outcome = %+v", out)
	}
}

func TestPurchaseSendItemRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.user(t, 7, 0, true)

	h.handle(t, Pick(7, keyBuyAccount, ""))
	h.handle(t, Pick(7, keyBuyType, "3_month"))
	if h.account(t, 7).Approval != ledger.ApprovalPending {
		t.Fatal("purchase did not reset approval")
	}

	adminMsgs := h.msgr.to(testAdmin)
	if len(adminMsgs) != 1 || len(adminMsgs[0].choices) != 1 {
		t.Fatalf("admin messages = %+v", adminMsgs)
	}
	ctrl := adminMsgs[0].choices[0]
	if ctrl.Key != keySendItem || ctrl.Payload == "" {
		t.Fatalf("control = %+v", ctrl)
	}
	b, err := h.bridge.Resolve(context.Background(), ctrl.Payload)
	if err != nil || b.UserID != 7 || b.ItemKind != "account" || b.ItemLabel != "3 months" {
		t.Fatalf("binding = %+v, %v", b, err)
	}

	h.handle(t, Pick(testAdmin, ctrl.Key, ctrl.Payload))
	h.handle(t, Text(testAdmin, "login: u7\npassword: p"))

	want := fmt.Sprintf(msgItemReady, "3 months", "account", "login: u7\npassword: p")
	if got := h.msgr.lastText(7); got != want {
		t.Fatalf("user got %q, want %q", got, want)
	}
	if got := h.msgr.lastText(testAdmin); got != fmt.Sprintf(msgItemDelivered, "account", 7) {
		t.Fatalf("admin report = %q", got)
	}
	if _, err := h.bridge.Resolve(context.Background(), ctrl.Payload); !errors.Is(err, bridge.ErrUnknownToken) {
		t.Fatalf("token not released: %v", err)
	}
}

func TestSendItemFailureReportedToAdmin(t *testing.T) {
	h := newHarness(t)
	h.user(t, 7, 0, true)
	token, err := h.bridge.Bind(context.Background(), bridge.Binding{UserID: 7, ItemKind: "account", ItemLabel: "Special"})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	h.msgr.fail[7] = true

	h.handle(t, Pick(testAdmin, keySendItem, token))
	h.handle(t, Text(testAdmin, "details"))

	if got := h.msgr.lastText(testAdmin); got != fmt.Sprintf(msgItemFailed, "account", 7) {
		t.Fatalf("admin report = %q", got)
	}
	if _, err := h.bridge.Resolve(context.Background(), token); err != nil {
		t.Fatalf("token released after failed delivery: %v", err)
	}
	if _, ok, _ := h.engine.sessions.Get(context.Background(), testAdmin); ok {
		t.Fatal("admin session survived the terminal step")
	}
}

func TestSendItemUnknownToken(t *testing.T) {
	h := newHarness(t)
	out := h.advance(t, Pick(testAdmin, keySendItem, "deadbeef"))
	if out.Session != nil || out.Effects[0].Text != msgUnknownItemToken {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestDiscountRedeemedOnce(t *testing.T) {
	h := newHarness(t)
	h.user(t, 42, 0, false)

	h.advance(t, Pick(testAdmin, keyAddDiscount, ""))
	out := h.advance(t, Text(testAdmin, "vip50 5000"))
	if out.Effects[0].Text != msgDiscountCreated {
		t.Fatalf("add code effects = %v", texts(out.Effects))
	}
	h.advance(t, Pick(testAdmin, keyAddDiscount, ""))
	out = h.advance(t, Text(testAdmin, "vip50 100"))
	if out.Effects[0].Text != msgDiscountExists {
		t.Fatalf("duplicate code effects = %v", texts(out.Effects))
	}

	h.advance(t, Pick(42, keyDiscount, ""))
	out = h.advance(t, Text(42, "vip50"))
	if want := fmt.Sprintf(msgDiscountCredited, 5000, "toman"); out.Effects[0].Text != want {
		t.Fatalf("redeem text = %q", out.Effects[0].Text)
	}
	u := h.account(t, 42)
	if u.Credit != 5000 || !u.DiscountUsed {
		t.Fatalf("after redeem = %+v", u)
	}

	out = h.advance(t, Pick(42, keyDiscount, ""))
	if out.Session != nil || out.Effects[0].Text != msgDiscountUsed {
		t.Fatalf("second attempt = %+v", out)
	}
	if h.account(t, 42).Credit != 5000 {
		t.Fatal("second attempt changed balance")
	}
}

func TestInvalidDiscountKeepsFlag(t *testing.T) {
	h := newHarness(t)
	h.user(t, 3, 0, false)
	h.advance(t, Pick(3, keyDiscount, ""))
	out := h.advance(t, Text(3, "nope"))
	if out.Session != nil || out.Effects[0].Text != msgDiscountInvalid {
		t.Fatalf("outcome = %+v", out)
	}
	if h.account(t, 3).DiscountUsed {
		t.Fatal("invalid code consumed the flag")
	}
}

func TestBroadcastPartialFailure(t *testing.T) {
	h := newHarness(t)
	for id := int64(1); id <= 5; id++ {
		h.user(t, id, 0, false)
	}
	h.msgr.fail[3] = true

	h.handle(t, Pick(testAdmin, keyBroadcast, ""))
	h.handle(t, Text(testAdmin, "maintenance tonight"))

	for _, id := range []int64{1, 2, 4, 5} {
		if got := h.msgr.lastText(id); got != "maintenance tonight" {
			t.Fatalf("user %d got %q", id, got)
		}
	}
	// Recipients are users 1-5 plus the admin row created on first contact.
	if got, want := h.msgr.lastText(testAdmin), fmt.Sprintf(msgBroadcastSummary, 5, 1); got != want {
		t.Fatalf("summary = %q, want %q", got, want)
	}
}

func TestAdminOnlyFlowsRejectUsers(t *testing.T) {
	h := newHarness(t)
	h.user(t, 5, 0, false)
	h.advance(t, Pick(5, keyTransfer, ""))

	for _, key := range []string{keyBroadcast, keyCharge, keyAddDiscount, keyListPending, keyApprove} {
		out := h.advance(t, Pick(5, key, "5"))
		if out.Route != RouteRejected || out.Effects[0].Text != msgAdminOnly {
			t.Fatalf("%s outcome = %+v", key, out)
		}
		if out.Session == nil || out.Session.Flow != "transfer-credit" {
			t.Fatalf("%s dropped the active session", key)
		}
	}
	if h.account(t, 5).Approval != ledger.ApprovalPending {
		t.Fatal("user approved themselves")
	}
}

func TestAdminChatLoop(t *testing.T) {
	h := newHarness(t)
	h.user(t, 7, 0, false)

	h.handle(t, Pick(testAdmin, keyChatWithUser, ""))
	h.handle(t, Text(testAdmin, "seven"))
	if got := h.msgr.lastText(testAdmin); got != msgEnterChatTarget {
		t.Fatalf("admin prompt = %q", got)
	}
	h.handle(t, Text(testAdmin, "7"))
	for _, line := range []string{"hi", "how can I help?"} {
		h.handle(t, Text(testAdmin, line))
		if got := h.msgr.lastText(7); got != fmt.Sprintf(msgFromAdmin, line) {
			t.Fatalf("user got %q", got)
		}
		if got := h.msgr.lastText(testAdmin); got != msgChatSent {
			t.Fatalf("admin ack = %q", got)
		}
	}
	sess, ok, _ := h.engine.sessions.Get(context.Background(), testAdmin)
	if !ok || sess.State != stateChatting {
		t.Fatalf("chat session = %+v", sess)
	}

	out := h.advance(t, Command(testAdmin, "/exit_chat", ""))
	if out.Session != nil || out.Effects[0].Text != msgChatExited {
		t.Fatalf("exit outcome = %+v", out)
	}
	out = h.advance(t, Command(testAdmin, "/exit_chat", ""))
	if out.Effects[0].Text != msgNoActiveChat {
		t.Fatalf("second exit = %v", texts(out.Effects))
	}
}

func TestSupportReplyOpensChat(t *testing.T) {
	h := newHarness(t)
	h.user(t, 8, 0, false)
	h.handle(t, Pick(8, keySupport, ""))
	h.handle(t, Text(8, "my vpn is down"))

	msgs := h.msgr.to(testAdmin)
	last := msgs[len(msgs)-1]
	if !strings.Contains(last.text, "my vpn is down") || len(last.choices) != 1 {
		t.Fatalf("admin message = %+v", last)
	}
	out := h.advance(t, Pick(testAdmin, last.choices[0].Key, last.choices[0].Payload))
	if out.Session == nil || out.Session.State != stateChatting {
		t.Fatalf("reply outcome = %+v", out)
	}
}

func TestAdminChargeUnknownUser(t *testing.T) {
	h := newHarness(t)
	h.user(t, 4, 0, false)

	h.advance(t, Pick(testAdmin, keyCharge, ""))
	out := h.advance(t, Text(testAdmin, "404 100"))
	if out.Effects[0].Text != fmt.Sprintf(msgChargeNoUser, 404) {
		t.Fatalf("effects = %v", texts(out.Effects))
	}
	h.advance(t, Pick(testAdmin, keyCharge, ""))
	out = h.advance(t, Text(testAdmin, "4 250"))
	if out.Effects[0].Text != msgCharged || h.account(t, 4).Credit != 250 {
		t.Fatalf("charge effects = %v", texts(out.Effects))
	}
	h.advance(t, Pick(testAdmin, keyCharge, ""))
	out = h.advance(t, Text(testAdmin, "4"))
	if out.Effects[0].Text != msgChargeFormat || out.Session != nil {
		t.Fatalf("malformed charge = %+v", out)
	}
}

func TestAdminAmountsMustBePositive(t *testing.T) {
	h := newHarness(t)
	h.user(t, 4, 100, false)

	h.advance(t, Pick(testAdmin, keyCharge, ""))
	out := h.advance(t, Text(testAdmin, "4 -50"))
	if out.Effects[0].Text != msgChargeFormat || h.account(t, 4).Credit != 100 {
		t.Fatalf("negative charge = %v, credit %d", texts(out.Effects), h.account(t, 4).Credit)
	}

	h.advance(t, Pick(testAdmin, keyAddDiscount, ""))
	out = h.advance(t, Text(testAdmin, "free 0"))
	if out.Effects[0].Text != msgDiscountFormat || out.Session != nil {
		t.Fatalf("zero discount = %+v", out)
	}
	if _, err := h.store.Code(context.Background(), "free"); !errors.Is(err, ledger.ErrCodeNotFound) {
		t.Fatalf("zero-value code stored: %v", err)
	}
}

func TestServiceProvisioningAndDelivery(t *testing.T) {
	h := newHarness(t)
	h.user(t, 9, 0, true)

	out := h.advance(t, Pick(9, keyServices, ""))
	if out.Session == nil {
		t.Fatal("approved user could not enter get-service")
	}
	out = h.advance(t, Pick(9, keyServiceType, "v2ray"))
	if out.Effects[0].Text != msgUnavailable || h.account(t, 9).Approval != ledger.ApprovalApproved {
		t.Fatalf("unconfigured service = %+v", out)
	}

	h.advance(t, Pick(testAdmin, keyAddService, "v2ray"))
	out = h.advance(t, Pick(testAdmin, "bogus", ""))
	if out.Effects[0].Text != msgServiceInvalidInput || out.Session != nil {
		t.Fatalf("invalid content = %+v", out)
	}
	h.advance(t, Pick(testAdmin, keyAddService, "v2ray"))
	out = h.advance(t, File(testAdmin, "FILE123", ""))
	if out.Effects[0].Text != fmt.Sprintf(msgServiceSavedFile, "FILE123") {
		t.Fatalf("save file = %v", texts(out.Effects))
	}

	h.advance(t, Pick(9, keyServices, ""))
	out = h.advance(t, Pick(9, keyServiceType, "v2ray"))
	if len(out.Effects) != 1 || out.Effects[0].Kind != EffectFile || out.Effects[0].FileRef != "FILE123" {
		t.Fatalf("delivery = %+v", out.Effects)
	}
	if h.account(t, 9).Approval != ledger.ApprovalPending {
		t.Fatal("service request did not reset approval")
	}
}

func TestGuideSentAsMediaGroup(t *testing.T) {
	h := newHarness(t)
	h.handle(t, Pick(1, keyGetApp, ""))
	h.handle(t, Pick(1, keyAppType, guideID))

	msgs := h.msgr.to(1)
	if len(msgs) != 3 {
		t.Fatalf("messages = %+v", msgs)
	}
	if msgs[1].kind != "media" || len(msgs[1].media) != 10 {
		t.Fatalf("album = %+v", msgs[1])
	}
	if msgs[2].text != DefaultCatalog().Guide.Note {
		t.Fatalf("note = %q", msgs[2].text)
	}
}

func TestApproveAndListPending(t *testing.T) {
	h := newHarness(t)
	h.user(t, 11, 0, false)
	h.user(t, 12, 0, true)

	out := h.advance(t, Pick(testAdmin, keyListPending, ""))
	// The admin row itself is pending too.
	var approveFor []string
	for _, e := range out.Effects {
		if len(e.Choices) == 1 && e.Choices[0].Key == keyApprove {
			approveFor = append(approveFor, e.Choices[0].Payload)
		}
	}
	if len(approveFor) != 2 || approveFor[0] != "11" {
		t.Fatalf("pending controls = %v", approveFor)
	}

	out = h.advance(t, Pick(testAdmin, keyApprove, "11"))
	if !h.account(t, 11).Approved() {
		t.Fatal("user not approved")
	}
	if out.Effects[1].To != 11 || out.Effects[1].Text != msgYouApproved {
		t.Fatalf("effects = %+v", out.Effects)
	}
}

func TestInterleavedUsersAdvanceIndependently(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 500, false)
	h.user(t, 2, 0, false)
	if err := h.store.InsertCode(context.Background(), ledger.DiscountCode{Code: "gift", Value: 30}); err != nil {
		t.Fatalf("insert code: %v", err)
	}

	h.advance(t, Pick(1, keyTransfer, ""))
	h.advance(t, Pick(2, keyDiscount, ""))
	h.advance(t, Text(1, "2"))
	out := h.advance(t, Text(2, "gift"))
	if out.Session != nil || h.account(t, 2).Credit != 30 {
		t.Fatalf("user 2 outcome = %+v", out)
	}
	out = h.advance(t, Text(1, "200"))
	if out.Session != nil {
		t.Fatalf("user 1 outcome = %+v", out)
	}
	if a, b := h.account(t, 1).Credit, h.account(t, 2).Credit; a != 300 || b != 230 {
		t.Fatalf("balances = %d/%d", a, b)
	}
}

func TestConcurrentUsersTransferToOneRecipient(t *testing.T) {
	h := newHarness(t)
	const senders = 20
	h.user(t, 100, 0, false)
	for id := int64(1); id <= senders; id++ {
		h.user(t, id, 50, false)
	}

	var wg sync.WaitGroup
	errs := make(chan error, senders)
	for id := int64(1); id <= senders; id++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			ctx := context.Background()
			for _, ev := range []Event{Pick(id, keyTransfer, ""), Text(id, "100"), Text(id, "50")} {
				if _, err := h.engine.Advance(ctx, ev); err != nil {
					errs <- err
					return
				}
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("advance: %v", err)
	}
	if got := h.account(t, 100).Credit; got != senders*50 {
		t.Fatalf("recipient credit = %d, want %d", got, senders*50)
	}
}

type failingStore struct {
	ledger.Store
}

func (failingStore) Transfer(context.Context, int64, int64, int64) error {
	return errors.New("connection reset")
}

func TestStoreErrorClearsSession(t *testing.T) {
	h := newHarnessWithStore(t, failingStore{Store: ledger.NewMemoryStore()})
	h.user(t, 1, 100, false)
	h.user(t, 2, 0, false)

	h.advance(t, Pick(1, keyTransfer, ""))
	h.advance(t, Text(1, "2"))
	out, err := h.engine.Advance(context.Background(), Text(1, "10"))
	if err == nil {
		t.Fatal("expected store error")
	}
	if out.Route != RouteError || out.Session != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if len(out.Effects) != 1 || out.Effects[0].Text != msgInternalError {
		t.Fatalf("effects = %v", texts(out.Effects))
	}
	if _, ok, _ := h.engine.sessions.Get(context.Background(), 1); ok {
		t.Fatal("session not cleared")
	}
}

func TestCourierSplitsLargeAlbums(t *testing.T) {
	m := newFakeMessenger()
	items := make([]MediaItem, 23)
	NewCourier(m, nil, 1).Deliver(context.Background(), []Effect{{Kind: EffectMedia, To: 1, Media: items}})

	msgs := m.to(1)
	if len(msgs) != 3 || len(msgs[0].media) != 10 || len(msgs[2].media) != 3 {
		t.Fatalf("albums = %d", len(msgs))
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterFlow(transferCreditFlow()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.RegisterFlow(transferCreditFlow()); err == nil {
		t.Fatal("duplicate flow accepted")
	}
	clash := supportMessageFlow()
	clash.Triggers = []Trigger{OnChoice(keyTransfer)}
	if err := r.RegisterFlow(clash); err == nil {
		t.Fatal("colliding trigger accepted")
	}
	broken := topUpFlow()
	broken.Steps[stateEnterPayment] = Step{Prompt: func(*Turn) {}}
	if err := r.RegisterFlow(broken); err == nil {
		t.Fatal("step without handler accepted")
	}
	if err := r.RegisterAction(Action{Name: "x", Triggers: []Trigger{OnCommand("transfer", "")}, Run: func(*Turn) error { return nil }}); err == nil {
		t.Fatal("action stealing a flow command accepted")
	}
}

func TestBuiltinPublishesCommands(t *testing.T) {
	r, err := Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	user := r.Commands(false)
	admin := r.Commands(true)
	if len(admin) != len(user)+1 {
		t.Fatalf("user %d / admin %d commands", len(user), len(admin))
	}
	for _, c := range user {
		if c.Name == "/admin" {
			t.Fatal("admin command published to users")
		}
	}
	if len(r.FlowNames()) != 13 {
		t.Fatalf("flows = %v", r.FlowNames())
	}
}
