package models

// Fallback values shown when a stored document lacks a field.
const (
	UnknownCompanyName = "Empresa Desconhecida"
	UnknownSector      = "Setor Desconhecido"
	UnavailableTitle   = "Título não disponível"
	UnavailableContent = "Conteúdo não disponível"
)

// Company is a company record as rendered by the app.
type Company struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	ImageURL string `json:"image_url"`
	Rating   int    `json:"rating"`
}

// CompanyDoc is the stored form of a company. Absent fields stay nil.
type CompanyDoc struct {
	ID       string  `firestore:"-"`
	Name     *string `firestore:"name,omitempty"`
	Sector   *string `firestore:"sector,omitempty"`
	Note     *int64  `firestore:"note,omitempty"`
	ImageURL *string `firestore:"image_url,omitempty"`
}

// Resolve applies the display defaults to the stored document.
func (d CompanyDoc) Resolve() Company {
	return Company{
		ID:       d.ID,
		Name:     stringOr(d.Name, UnknownCompanyName),
		Sector:   stringOr(d.Sector, UnknownSector),
		ImageURL: stringOr(d.ImageURL, ""),
		Rating:   int(intOr(d.Note, 0)),
	}
}

// News is one news item of a company.
type News struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Stars     int    `json:"stars"`
	Link      string `json:"link,omitempty"`
}

type NewsDoc struct {
	ID        string  `firestore:"-"`
	CompanyID string  `firestore:"-"`
	Title     *string `firestore:"title,omitempty"`
	Content   *string `firestore:"content,omitempty"`
	Stars     *int64  `firestore:"stars,omitempty"`
	Link      *string `firestore:"link,omitempty"`
}

func (d NewsDoc) Resolve() News {
	return News{
		ID:        d.ID,
		CompanyID: d.CompanyID,
		Title:     stringOr(d.Title, UnavailableTitle),
		Content:   stringOr(d.Content, UnavailableContent),
		Stars:     int(intOr(d.Stars, 0)),
		Link:      stringOr(d.Link, ""),
	}
}

// Report is a downloadable ESG report of a company.
type Report struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Title     string `json:"title"`
	FileURL   string `json:"file_url"`
}

type ReportDoc struct {
	ID        string  `firestore:"-"`
	CompanyID string  `firestore:"-"`
	Title     *string `firestore:"title,omitempty"`
	FileURL   *string `firestore:"file_url,omitempty"`
}

func (d ReportDoc) Resolve() Report {
	return Report{
		ID:        d.ID,
		CompanyID: d.CompanyID,
		Title:     stringOr(d.Title, UnavailableTitle),
		FileURL:   stringOr(d.FileURL, ""),
	}
}

func stringOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int64, def int64) int64 {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// Ptr returns a pointer to v. Handy for building documents.
func Ptr[T any](v T) *T {
	return &v
}
