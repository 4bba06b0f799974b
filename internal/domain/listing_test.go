package domain

import "testing"

func TestNormalizePlate(t *testing.T) {
	tests := map[string]string{
		"abc123":     "ABC123",
		"  abc 123 ": "ABC123",
		"7\tXYZ\n89": "7XYZ89",
		"":           "",
	}
	for in, want := range tests {
		if got := NormalizePlate(in); got != want {
			t.Fatalf("NormalizePlate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSnapshotCopiesMutableFields(t *testing.T) {
	weekly := int64(50000)
	desc := "Clean"
	l := Listing{
		VehicleDetails: VehicleDetails{Year: 2020, Make: "Ford", Description: &desc, Images: []string{"a.jpg"}},
		Prices:         Prices{Daily: 9000, Weekly: &weekly},
	}

	snap := l.Snapshot()
	l.Images[0] = "b.jpg"
	*l.Weekly = 1
	*l.Description = "Changed"

	if snap.Images[0] != "a.jpg" || *snap.Prices.Weekly != 50000 || *snap.Description != "Clean" {
		t.Fatalf("expected snapshot to be independent of the listing, got %+v", snap)
	}
}

func TestOriginalPricesClear(t *testing.T) {
	v := int64(100)
	o := OriginalPrices{OriginalDaily: &v, OriginalMonthly: &v}
	if o.IsEmpty() {
		t.Fatal("expected originals to be set")
	}
	o.Clear()
	if !o.IsEmpty() {
		t.Fatal("expected originals to be cleared")
	}
}

func TestActorCanManage(t *testing.T) {
	if !(Actor{UserID: "u1"}).CanManage("u1") {
		t.Fatal("expected owner to manage own listing")
	}
	if (Actor{UserID: "u2"}).CanManage("u1") {
		t.Fatal("expected other host to be refused")
	}
	if (Actor{}).CanManage("") {
		t.Fatal("expected anonymous actor to be refused")
	}
	if !(Actor{UserID: "m1", Moderator: true}).CanManage("u1") {
		t.Fatal("expected moderator to manage any listing")
	}
}

func TestNotificationRoutingKey(t *testing.T) {
	event := NotificationEvent(Notification{EventType: NotifyListingRejected, RecipientID: "u1"})
	if event.RoutingKey != "notify.listing_rejected" {
		t.Fatalf("expected notify.listing_rejected, got %s", event.RoutingKey)
	}
}
