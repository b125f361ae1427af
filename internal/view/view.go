// Package view turns store records into the data each screen renders.
package view

import (
	"fmt"

	"stakevoice/internal/models"
	"stakevoice/internal/nav"
)

// PlaceholderImage is shown for companies without an image.
const PlaceholderImage = "/static/company-placeholder.svg"

// MaxStars is the size of the star row.
const MaxStars = 5

type CompanyCard struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SectorLabel string `json:"sector_label"`
	Image       string `json:"image"`
	Navigate    string `json:"navigate"`
}

func Card(c models.Company) CompanyCard {
	return CompanyCard{
		ID:          c.ID,
		Name:        c.Name,
		SectorLabel: SectorLabel(c.Sector),
		Image:       Image(c.ImageURL),
		Navigate:    nav.CompanyDetails(c.ID),
	}
}

func Cards(cs []models.Company) []CompanyCard {
	out := make([]CompanyCard, 0, len(cs))
	for _, c := range cs {
		out = append(out, Card(c))
	}
	return out
}

type NewsItem struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Stars   int    `json:"stars"`
	Link    string `json:"link,omitempty"`
}

type ReportOption struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type CompanyDetail struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	SectorLabel string         `json:"sector_label"`
	Image       string         `json:"image"`
	Stars       int            `json:"stars"`
	News        []NewsItem     `json:"news"`
	Reports     []ReportOption `json:"reports"`
	Feedback    string         `json:"feedback_route"`
}

func Detail(c models.Company, news []models.News, reports []models.Report) CompanyDetail {
	d := CompanyDetail{
		ID:          c.ID,
		Name:        c.Name,
		SectorLabel: SectorLabel(c.Sector),
		Image:       Image(c.ImageURL),
		Stars:       Stars(c.Rating),
		News:        make([]NewsItem, 0, len(news)),
		Reports:     make([]ReportOption, 0, len(reports)),
		Feedback:    nav.CreateFeedback(c.ID),
	}
	for _, n := range news {
		d.News = append(d.News, NewsItem{Title: n.Title, Content: n.Content, Stars: Stars(n.Stars), Link: n.Link})
	}
	for _, r := range reports {
		d.Reports = append(d.Reports, ReportOption{ID: r.ID, Title: r.Title})
	}
	return d
}

func SectorLabel(sector string) string { return "Setor: " + sector }

func Image(url string) string {
	if url == "" {
		return PlaceholderImage
	}
	return url
}

// Stars clamps a rating to the star row.
func Stars(n int) int {
	return max(0, min(n, MaxStars))
}

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FeedbackForm is the create-feedback screen.
type FeedbackForm struct {
	CompanyID  string   `json:"company_id"`
	Image      string   `json:"image"`
	Senders    []Option `json:"senders"`
	Categories []Option `json:"categories"`
	Draft      any      `json:"draft"`
}

func Form(c models.Company, categories []string, draft any) FeedbackForm {
	f := FeedbackForm{
		CompanyID:  c.ID,
		Image:      Image(c.ImageURL),
		Senders:    make([]Option, 0, len(models.SenderRoles)),
		Categories: make([]Option, 0, len(categories)),
		Draft:      draft,
	}
	for _, r := range models.SenderRoles {
		f.Senders = append(f.Senders, Option{Value: string(r), Label: string(r)})
	}
	for _, c := range categories {
		f.Categories = append(f.Categories, Option{Value: c, Label: c})
	}
	return f
}

// History states.
const (
	StateLoading = "loading"
	StateEmpty   = "empty"
	StateLoaded  = "loaded"
)

const (
	MsgHistoryFailed = "Erro ao buscar feedbacks"
	MsgHistoryEmpty  = "Nenhum feedback encontrado"
)

type FeedbackItem struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	SentBy    string `json:"sent_by"`
	Category  string `json:"category"`
	Report    string `json:"report"`
	Anonymous string `json:"anonymous"`
	Rating    string `json:"rating"`
	CreatedAt int64  `json:"created_at"`
}

type FeedbackHistory struct {
	State   string         `json:"state"`
	Message string         `json:"message,omitempty"`
	Items   []FeedbackItem `json:"items"`
}

func Loading() FeedbackHistory {
	return FeedbackHistory{State: StateLoading, Items: []FeedbackItem{}}
}

// Empty is the finished state with nothing to show. message says why.
func Empty(message string) FeedbackHistory {
	return FeedbackHistory{State: StateEmpty, Message: message, Items: []FeedbackItem{}}
}

func History(fbs []models.Feedback) FeedbackHistory {
	if len(fbs) == 0 {
		return Empty(MsgHistoryEmpty)
	}
	h := FeedbackHistory{State: StateLoaded, Items: make([]FeedbackItem, 0, len(fbs))}
	for _, fb := range fbs {
		h.Items = append(h.Items, Item(fb))
	}
	return h
}

func Item(fb models.Feedback) FeedbackItem {
	return FeedbackItem{
		ID:        fb.ID,
		CompanyID: fb.CompanyID,
		SentBy:    "Enviado por: " + string(fb.SentBy),
		Category:  "Categoria: " + fb.Category,
		Report:    "Feedback: " + fb.Report,
		Anonymous: "Anônimo: " + yesNo(fb.IsAnonymous),
		Rating:    fmt.Sprintf("Avaliação: %d/%d", fb.Rating, MaxStars),
		CreatedAt: fb.CreatedAt,
	}
}

func yesNo(b bool) string {
	if b {
		return "Sim"
	}
	return "Não"
}
