package reconciler

// BannerPhase is where the distribution banner is in its lifecycle.
type BannerPhase string

const (
	BannerHidden       BannerPhase = "hidden"
	BannerDistributing BannerPhase = "distributing"
	BannerCompleted    BannerPhase = "completed"
	BannerRefreshing   BannerPhase = "refreshing"
)

// Banner is the prize distribution overlay.
type Banner struct {
	Phase   BannerPhase `json:"phase"`
	Message string      `json:"message,omitempty"`
}

// Visible reports whether the banner is shown.
func (b Banner) Visible() bool {
	return b.Phase != "" && b.Phase != BannerHidden
}

// BannerMessages are the texts shown in each visible phase.
type BannerMessages struct {
	Distributing string `yaml:"distributing"`
	Completed    string `yaml:"completed"`
	Refreshing   string `yaml:"refreshing"`
}

// DefaultBannerMessages returns the stock banner texts.
func DefaultBannerMessages() BannerMessages {
	return BannerMessages{
		Distributing: "Prize pool is being distributed...",
		Completed:    "Prize distribution completed!",
		Refreshing:   "Refreshing leaderboard...",
	}
}

func (m BannerMessages) forPhase(phase BannerPhase) string {
	switch phase {
	case BannerDistributing:
		return m.Distributing
	case BannerCompleted:
		return m.Completed
	case BannerRefreshing:
		return m.Refreshing
	default:
		return ""
	}
}
