package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hazyhaar/rewardsfarm/search"
)

// Dashboard is the subset of the rewards dashboard state the farm reads.
type Dashboard struct {
	UserStatus struct {
		AvailablePoints int `json:"availablePoints"`
		LevelInfo       struct {
			ActiveLevel string `json:"activeLevel"`
		} `json:"levelInfo"`
		Counters struct {
			PCSearch     []Counter `json:"pcSearch"`
			MobileSearch []Counter `json:"mobileSearch"`
		} `json:"counters"`
		RedeemGoal struct {
			Title string `json:"title"`
			Price int    `json:"price"`
		} `json:"redeemGoal"`
	} `json:"userStatus"`
	DailySetPromotions map[string][]Promotion `json:"dailySetPromotions"`
	MorePromotions     []Promotion            `json:"morePromotions"`
}

// Counter is one search counter: points earned so far and the daily cap.
type Counter struct {
	Progress int `json:"pointProgress"`
	Max      int `json:"pointProgressMax"`
}

// Promotion is a dashboard card.
type Promotion struct {
	OfferID        string `json:"offerId"`
	Title          string `json:"title"`
	Complete       bool   `json:"complete"`
	DestinationURL string `json:"destinationUrl"`
	PromotionType  string `json:"promotionType"`
	PointProgress  int    `json:"pointProgress"`
	PointMax       int    `json:"pointProgressMax"`
}

// Pending reports whether the card still awards points.
func (p Promotion) Pending() bool {
	return !p.Complete && p.PointMax > 0 && p.DestinationURL != ""
}

// Goal is the redeem goal the account saves toward.
type Goal struct {
	Title  string `json:"title"`
	Points int    `json:"points"`
}

// ParseDashboard decodes the dashboard JSON object.
func ParseDashboard(data []byte) (*Dashboard, error) {
	var d Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("session: parse dashboard: %w", err)
	}
	return &d, nil
}

// SearchPoints is how many points one credited search is worth, derived
// from the daily desktop cap.
func SearchPoints(desktopMax int) int {
	switch {
	case desktopMax == 30 || desktopMax == 90 || desktopMax == 102:
		return 3
	case desktopMax == 50 || desktopMax == 150 || desktopMax >= 170:
		return 5
	}
	return 1
}

func (d *Dashboard) desktop() (progress, max int) {
	for i, c := range d.UserStatus.Counters.PCSearch {
		if i > 1 {
			break
		}
		progress += c.Progress
		max += c.Max
	}
	return progress, max
}

// PointsPerSearch is the market rate for this account.
func (d *Dashboard) PointsPerSearch() int {
	_, max := d.desktop()
	return SearchPoints(max)
}

// Remaining computes how many credited searches are left per platform.
// Mobile searches are not offered at Level1.
func (d *Dashboard) Remaining() search.Quota {
	progress, max := d.desktop()
	per := SearchPoints(max)
	q := search.Quota{Desktop: remaining(max, progress, per)}

	if d.UserStatus.LevelInfo.ActiveLevel != "Level1" && len(d.UserStatus.Counters.MobileSearch) > 0 {
		m := d.UserStatus.Counters.MobileSearch[0]
		q.Mobile = remaining(m.Max, m.Progress, per)
	}
	return q
}

func remaining(max, progress, per int) uint {
	if max <= progress || per <= 0 {
		return 0
	}
	return uint((max - progress) / per)
}

// Goal returns the redeem goal, if one is set.
func (d *Dashboard) Goal() Goal {
	return Goal{Title: d.UserStatus.RedeemGoal.Title, Points: d.UserStatus.RedeemGoal.Price}
}

// DailySet returns today's daily-set cards. The dashboard keys them by
// date; the latest key is today's set.
func (d *Dashboard) DailySet() []Promotion {
	if len(d.DailySetPromotions) == 0 {
		return nil
	}
	keys := make([]string, 0, len(d.DailySetPromotions))
	for k := range d.DailySetPromotions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return dateKey(keys[i]) < dateKey(keys[j]) })
	return d.DailySetPromotions[keys[len(keys)-1]]
}

// dateKey turns "MM/DD/YYYY" into a sortable "YYYYMMDD".
func dateKey(s string) string {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return s
	}
	return parts[2] + pad2(parts[0]) + pad2(parts[1])
}

func pad2(s string) string {
	if len(s) < 2 {
		return strings.Repeat("0", 2-len(s)) + s
	}
	return s
}
