package http

import (
	"embed"
	"html/template"
	"math"
	"time"

	"github.com/kjstillabower/matchboard/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

type matchCard struct {
	models.Match
	National bool
	Close    bool
	Date     string
	Time     string
}

type dashboardView struct {
	Cards       []matchCard
	Sources     []models.GroundingSource
	Provenance  string
	Warning     string
	Reason      string
	FetchedAt   string
	RefreshWait int
}

func newDashboardView(res models.Result, refreshWait time.Duration, now time.Time) dashboardView {
	sorted := models.SortByKickoff(res.Matches)
	cards := make([]matchCard, 0, len(sorted))
	for _, m := range sorted {
		c := matchCard{Match: m, National: m.IsNationalTeam(), Close: m.IsClose(now)}
		c.Date, c.Time = m.LocalKickoff()
		cards = append(cards, c)
	}
	fetched := ""
	if !res.FetchedAt.IsZero() {
		local := res.FetchedAt.In(models.Brasilia)
		fetched = models.ShortDate(local) + " " + local.Format("15:04")
	}
	return dashboardView{
		Cards:       cards,
		Sources:     res.Sources,
		Provenance:  string(res.Provenance),
		Warning:     res.Warning,
		Reason:      string(res.Reason),
		FetchedAt:   fetched,
		RefreshWait: int(math.Ceil(refreshWait.Seconds())),
	}
}
