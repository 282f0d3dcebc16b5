package session

import (
	"testing"

	"github.com/hazyhaar/rewardsfarm/search"
)

const dashboardLevel2 = `{
  "userStatus": {
    "availablePoints": 4321,
    "levelInfo": {"activeLevel": "Level2"},
    "counters": {
      "pcSearch": [
        {"pointProgress": 30, "pointProgressMax": 150},
        {"pointProgress": 0, "pointProgressMax": 0}
      ],
      "mobileSearch": [{"pointProgress": 10, "pointProgressMax": 100}]
    },
    "redeemGoal": {"title": "Gift card", "price": 6500}
  },
  "dailySetPromotions": {
    "10/13/2026": [{"offerId": "old", "complete": false, "pointProgressMax": 10, "destinationUrl": "https://x/old"}],
    "10/14/2026": [
      {"offerId": "a", "complete": false, "pointProgressMax": 10, "destinationUrl": "https://x/a"},
      {"offerId": "b", "complete": true, "pointProgressMax": 10, "destinationUrl": "https://x/b"}
    ]
  },
  "morePromotions": [
    {"offerId": "m1", "complete": false, "pointProgressMax": 0, "destinationUrl": "https://x/m1"},
    {"offerId": "m2", "complete": false, "pointProgressMax": 5, "destinationUrl": "https://x/m2"}
  ]
}`

func TestSearchPoints(t *testing.T) {
	cases := map[int]int{30: 3, 90: 3, 102: 3, 50: 5, 150: 5, 170: 5, 250: 5, 10: 1, 0: 1, 160: 1}
	for max, want := range cases {
		if got := SearchPoints(max); got != want {
			t.Errorf("SearchPoints(%d): got %d, want %d", max, got, want)
		}
	}
}

func TestDashboard_Remaining(t *testing.T) {
	d, err := ParseDashboard([]byte(dashboardLevel2))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := d.Remaining()
	want := search.Quota{Desktop: 24, Mobile: 18}
	if got != want {
		t.Fatalf("remaining: got %v, want %v", got, want)
	}
	if d.PointsPerSearch() != 5 {
		t.Fatalf("points per search: got %d, want 5", d.PointsPerSearch())
	}
	if g := d.Goal(); g.Title != "Gift card" || g.Points != 6500 {
		t.Fatalf("goal: got %+v", g)
	}
	if d.UserStatus.AvailablePoints != 4321 {
		t.Fatalf("points: got %d", d.UserStatus.AvailablePoints)
	}
}

func TestDashboard_TwoDesktopCounters(t *testing.T) {
	d, err := ParseDashboard([]byte(`{"userStatus":{"levelInfo":{"activeLevel":"Level2"},"counters":{
		"pcSearch":[{"pointProgress":15,"pointProgressMax":90},{"pointProgress":0,"pointProgressMax":12}]}}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// 90+12 = 102 → 3 points per search; (102-15)/3 = 29.
	if got := d.Remaining(); got != (search.Quota{Desktop: 29}) {
		t.Fatalf("remaining: got %v", got)
	}
}

func TestDashboard_Level1HasNoMobile(t *testing.T) {
	d, err := ParseDashboard([]byte(`{"userStatus":{"levelInfo":{"activeLevel":"Level1"},"counters":{
		"pcSearch":[{"pointProgress":0,"pointProgressMax":50}],
		"mobileSearch":[{"pointProgress":0,"pointProgressMax":50}]}}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := d.Remaining(); got != (search.Quota{Desktop: 10}) {
		t.Fatalf("remaining: got %v", got)
	}
}

func TestDashboard_ProgressPastMax(t *testing.T) {
	d, err := ParseDashboard([]byte(`{"userStatus":{"counters":{"pcSearch":[{"pointProgress":160,"pointProgressMax":150}]}}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := d.Remaining(); got != (search.Quota{}) {
		t.Fatalf("remaining: got %v", got)
	}
}

func TestDashboard_DailySetPicksLatestDate(t *testing.T) {
	d, err := ParseDashboard([]byte(dashboardLevel2))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	set := d.DailySet()
	if len(set) != 2 || set[0].OfferID != "a" {
		t.Fatalf("daily set: got %+v", set)
	}
	var pending []string
	for _, p := range append(set, d.MorePromotions...) {
		if p.Pending() {
			pending = append(pending, p.OfferID)
		}
	}
	if len(pending) != 2 || pending[0] != "a" || pending[1] != "m2" {
		t.Fatalf("pending: got %v", pending)
	}
}

func TestDateKey(t *testing.T) {
	if got := dateKey("1/2/2026"); got != "20260102" {
		t.Fatalf("dateKey: got %q", got)
	}
	if dateKey("12/31/2025") >= dateKey("01/01/2026") {
		t.Fatal("dateKey does not sort across years")
	}
}

func TestParseDashboard_Invalid(t *testing.T) {
	if _, err := ParseDashboard([]byte(`{`)); err == nil {
		t.Fatal("expected error")
	}
}
