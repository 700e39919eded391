package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tbourn/go-service-desk/internal/domain"
	"github.com/tbourn/go-service-desk/internal/gateway"
	"github.com/tbourn/go-service-desk/internal/repo"
	"github.com/tbourn/go-service-desk/internal/session"
)

const user1 int64 = 101

func TestSubmit_CertificateRequestReachesOperators(t *testing.T) {
	k := newDesk(t, 100)
	cat, svc := k.seedService(t, "Personal Documents", "Certificate", "Passport copy")

	k.text(t, user1, MenuServices)
	k.press(t, user1, domain.CategoryAction(cat.ID))
	if got := k.state(user1); got != session.StateCategorySelected {
		t.Fatalf("state after category = %s", got)
	}
	k.press(t, user1, domain.ServiceAction(svc.ID))
	if got := k.state(user1); got != session.StateCollectingDocuments {
		t.Fatalf("state after service = %s", got)
	}
	k.text(t, user1, "need urgent")
	k.press(t, user1, domain.SimpleAction(domain.ActionSubmit))

	orders := k.orders(t, user1)
	if len(orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(orders))
	}
	o := orders[0]
	if o.Docs == nil || *o.Docs != "need urgent" {
		t.Fatalf("docs = %v", o.Docs)
	}
	if o.Status != domain.OrderStatusNew || o.ServiceTitle != "Certificate" {
		t.Fatalf("order = %+v", o)
	}
	code := trackingCode(t, k.gw, user1)
	if len(code) != 8 || code != o.Code {
		t.Fatalf("code %q, stored %q", code, o.Code)
	}
	for _, op := range []int64{operatorA, operatorB} {
		notes := 0
		for _, s := range k.gw.SentTo(op) {
			if strings.Contains(s.Text, "Code: "+code) {
				notes++
			}
		}
		if notes != 1 {
			t.Fatalf("operator %d notifications = %d, want 1", op, notes)
		}
	}
	if _, ok := k.store.Get(user1); ok {
		t.Fatal("session should be destroyed after submit")
	}
}

func TestSubmit_NoOrderWithoutSubmit(t *testing.T) {
	k := newDesk(t, 100)
	cat, svc := k.seedService(t, "Personal Documents", "Certificate")

	k.press(t, user1, domain.CategoryAction(cat.ID))
	k.press(t, user1, domain.ServiceAction(svc.ID))
	k.text(t, user1, "first")
	k.press(t, user1, domain.SimpleAction(domain.ActionCancel))

	if n := len(k.orders(t, user1)); n != 0 {
		t.Fatalf("orders after cancel = %d", n)
	}

	// Submit without a collecting session.
	k.press(t, user1, domain.SimpleAction(domain.ActionSubmit))
	if n := len(k.orders(t, user1)); n != 0 {
		t.Fatalf("orders after stray submit = %d", n)
	}
	last := k.gw.Answers[len(k.gw.Answers)-1]
	if last.Text != textNoActiveRequest {
		t.Fatalf("answer = %q", last.Text)
	}
}

func TestSubmit_EmptyDraftsUsesMarker(t *testing.T) {
	k := newDesk(t, 100)
	_, svc := k.seedService(t, "Cat", "Svc")

	k.press(t, user1, domain.ServiceAction(svc.ID))
	k.press(t, user1, domain.SimpleAction(domain.ActionSubmit))

	orders := k.orders(t, user1)
	if len(orders) != 1 || orders[0].Docs == nil || *orders[0].Docs != NoDocuments {
		t.Fatalf("orders = %+v", orders)
	}
}

func TestCollect_MixedMaterialForwardedInOrder(t *testing.T) {
	k := newDesk(t, 100)
	_, svc := k.seedService(t, "Cat", "Svc")

	k.press(t, user1, domain.ServiceAction(svc.ID))
	m1 := k.message(t, &gateway.Message{From: gateway.Sender{ID: user1}, Kind: gateway.KindPhoto})
	m2 := k.message(t, &gateway.Message{From: gateway.Sender{ID: user1}, Kind: gateway.KindDocument, FileName: "scan.pdf"})
	m3 := k.text(t, user1, "please hurry")
	k.press(t, user1, domain.SimpleAction(domain.ActionSubmit))

	orders := k.orders(t, user1)
	want := DraftPhoto + "\n" + DraftDocument + "scan.pdf\nplease hurry"
	if len(orders) != 1 || *orders[0].Docs != want {
		t.Fatalf("docs = %q, want %q", *orders[0].Docs, want)
	}

	var got []int64
	for _, f := range k.gw.Forwards {
		if f.ToChatID == operatorA {
			if f.FromChatID != user1 {
				t.Fatalf("forward from %d", f.FromChatID)
			}
			got = append(got, f.MessageID)
		}
	}
	if len(got) != 3 || got[0] != m1 || got[1] != m2 || got[2] != m3 {
		t.Fatalf("forwards to A = %v, want [%d %d %d]", got, m1, m2, m3)
	}
}

func TestRelay_OneOperatorFailureDoesNotBlockOthers(t *testing.T) {
	k := newDesk(t, 100)
	_, svc := k.seedService(t, "Cat", "Svc")
	k.gw.FailSendTo[operatorA] = true

	k.press(t, user1, domain.ServiceAction(svc.ID))
	k.text(t, user1, "doc")
	k.press(t, user1, domain.SimpleAction(domain.ActionSubmit))

	if len(k.orders(t, user1)) != 1 {
		t.Fatal("order should be persisted despite delivery failure")
	}
	if len(k.gw.SentTo(operatorB)) != 1 {
		t.Fatalf("operator B messages = %d", len(k.gw.SentTo(operatorB)))
	}
	forwardsB := 0
	for _, f := range k.gw.Forwards {
		if f.ToChatID == operatorB {
			forwardsB++
		}
	}
	if forwardsB != 1 {
		t.Fatalf("operator B forwards = %d", forwardsB)
	}

	var relay *DeliveryReport
	for i := range k.sink.reports {
		if k.sink.reports[i].Kind == DeliveryRelay {
			relay = &k.sink.reports[i]
		}
	}
	if relay == nil {
		t.Fatal("relay report not recorded")
	}
	if relay.Delivered() != 2 || len(relay.Failed()) != 2 {
		t.Fatalf("delivered=%d failed=%d", relay.Delivered(), len(relay.Failed()))
	}
	for _, f := range relay.Failed() {
		if f.Recipient != operatorA || !errors.Is(f.Err, gateway.ErrInjected) {
			t.Fatalf("unexpected failure %+v", f)
		}
	}
}

func TestChooseCategory_EmptyCategoryKeepsState(t *testing.T) {
	k := newDesk(t, 100)
	cat, err := repo.EnsureCategory(context.Background(), k.db, "Empty")
	if err != nil {
		t.Fatal(err)
	}
	k.press(t, user1, domain.CategoryAction(cat.ID))
	if got := k.state(user1); got != session.StateIdle {
		t.Fatalf("state = %s, want idle", got)
	}
	if !k.gw.Contains(user1, textNoServices) {
		t.Fatal("expected no-services notice")
	}
}

func TestChooseService_ReplacesPreviousDrafts(t *testing.T) {
	k := newDesk(t, 100)
	_, svc1 := k.seedService(t, "Cat", "One")
	_, svc2 := k.seedService(t, "Cat", "Two")

	k.press(t, user1, domain.ServiceAction(svc1.ID))
	k.text(t, user1, "stale")
	k.press(t, user1, domain.ServiceAction(svc2.ID))

	s, ok := k.store.Get(user1)
	if !ok || s.ServiceID != svc2.ID || len(s.Drafts) != 0 || len(s.Refs) != 0 {
		t.Fatalf("session = %+v", s)
	}
}

func TestCreateOrder_RetriesOnCollision(t *testing.T) {
	k := newDesk(t, 100)
	_, svc := k.seedService(t, "Cat", "Svc")
	ctx := context.Background()
	if _, err := repo.UpsertUser(ctx, k.db, domain.User{ID: user1}, k.clock.now()); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateOrder(ctx, k.db, user1, svc.ID, "taken001", "x"); err != nil {
		t.Fatal(err)
	}

	codes := []string{"taken001", "fresh002"}
	w := k.d.Workflow
	w.NewCode = func() string {
		c := codes[0]
		codes = codes[1:]
		return c
	}
	o, err := w.createOrder(ctx, user1, svc.ID, "docs")
	if err != nil {
		t.Fatalf("createOrder: %v", err)
	}
	if o.Code != "fresh002" {
		t.Fatalf("code = %q", o.Code)
	}
}

func TestCreateOrder_ExhaustedAttempts(t *testing.T) {
	k := newDesk(t, 100)
	_, svc := k.seedService(t, "Cat", "Svc")
	ctx := context.Background()
	if _, err := repo.UpsertUser(ctx, k.db, domain.User{ID: user1}, k.clock.now()); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateOrder(ctx, k.db, user1, svc.ID, "samecode", "x"); err != nil {
		t.Fatal(err)
	}
	k.d.Workflow.NewCode = func() string { return "samecode" }

	k.press(t, user1, domain.ServiceAction(svc.ID))
	err := k.pressErr(user1, domain.SimpleAction(domain.ActionSubmit))
	if !errors.Is(err, ErrTrackingCodeExhausted) {
		t.Fatalf("err = %v, want ErrTrackingCodeExhausted", err)
	}
	if got := k.state(user1); got != session.StateCollectingDocuments {
		t.Fatalf("state = %s, want collecting after failed submit", got)
	}
	if !k.gw.Contains(user1, textFailure) {
		t.Fatal("user should be told about the failure")
	}
}

func TestDraftSummary(t *testing.T) {
	cases := []struct {
		msg  gateway.Message
		want string
	}{
		{gateway.Message{Kind: gateway.KindText, Text: " hi "}, "hi"},
		{gateway.Message{Kind: gateway.KindPhoto}, DraftPhoto},
		{gateway.Message{Kind: gateway.KindDocument, FileName: "a.pdf"}, DraftDocument + "a.pdf"},
		{gateway.Message{Kind: gateway.KindDocument}, DraftDocument + "Document"},
		{gateway.Message{Kind: gateway.KindOther}, DraftAttachment},
		{gateway.Message{Kind: gateway.KindText}, DraftAttachment},
	}
	for _, c := range cases {
		if got := DraftSummary(&c.msg); got != c.want {
			t.Errorf("DraftSummary(%+v) = %q, want %q", c.msg, got, c.want)
		}
	}
	if JoinDrafts(nil) != NoDocuments {
		t.Error("empty drafts should use marker")
	}
}
