package importer

import "testing"

func TestStatusClassifier(t *testing.T) {
	c := NewStatusClassifier(MustDefaultLayout().TerminalStatuses)
	s := func(v string) *string { return &v }

	cases := []struct {
		in       *string
		status   string
		wantHint string
	}{
		{nil, StatusNew, ""},
		{s("   "), StatusNew, ""},
		{s("PO Received"), StatusPOReceived, ""},
		{s("po-recieved"), StatusPOReceived, ""},
		{s("PO_RECIVED"), StatusPOReceived, ""},
		{s("  Ravi\n Kumar "), StatusAssigned, "Ravi Kumar"},
	}
	for _, tc := range cases {
		status, hint := c.Classify(tc.in)
		if status != tc.status {
			t.Fatalf("Classify(%v) status=%s want %s", tc.in, status, tc.status)
		}
		got := ""
		if hint != nil {
			got = *hint
		}
		if got != tc.wantHint {
			t.Fatalf("Classify(%v) hint=%q want %q", tc.in, got, tc.wantHint)
		}
	}
}

func TestDeriveStatus(t *testing.T) {
	email := "a@x.com"
	stages := []StageProgress{
		{Code: "EMAIL_SENT_TO_CUSTOMER", DisplayOrder: 1, Completed: true},
		{Code: "PROPOSAL_SENT", DisplayOrder: 5, Completed: true},
		{Code: "PO_RECEIVED", DisplayOrder: 6},
	}
	if got := DeriveStatus(StatusAssigned, nil, stages); got != "PROPOSAL_SENT" {
		t.Fatalf("got %s want PROPOSAL_SENT", got)
	}
	if got := DeriveStatus(StatusAssigned, &email, nil); got != StatusEmailCaptured {
		t.Fatalf("got %s want EMAIL_CAPTURED", got)
	}
	if got := DeriveStatus(StatusPOReceived, nil, nil); got != StatusPOReceived {
		t.Fatalf("got %s want PO_RECEIVED", got)
	}
	if got := DeriveStatus("", nil, nil); got != StatusNew {
		t.Fatalf("got %s want NEW", got)
	}
}
