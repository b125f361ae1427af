package models_test

import (
	"testing"

	"stakevoice/internal/models"

	"github.com/stretchr/testify/require"
)

func TestCompanyDoc_ResolveDefaults(t *testing.T) {
	c := models.CompanyDoc{ID: "c1"}.Resolve()

	require.Equal(t, "c1", c.ID)
	require.Equal(t, "Empresa Desconhecida", c.Name)
	require.Equal(t, "Setor Desconhecido", c.Sector)
	require.Equal(t, "", c.ImageURL)
	require.Equal(t, 0, c.Rating)
}

func TestCompanyDoc_ResolveKeepsValues(t *testing.T) {
	c := models.CompanyDoc{
		ID:     "acme",
		Name:   models.Ptr("Acme"),
		Sector: models.Ptr("Energy"),
		Note:   models.Ptr(int64(3)),
	}.Resolve()

	require.Equal(t, "Acme", c.Name)
	require.Equal(t, "Energy", c.Sector)
	require.Equal(t, 3, c.Rating)
	require.Empty(t, c.ImageURL)
}

func TestNewsAndReportDefaults(t *testing.T) {
	n := models.NewsDoc{ID: "n1"}.Resolve()
	require.Equal(t, "Título não disponível", n.Title)
	require.Equal(t, "Conteúdo não disponível", n.Content)
	require.Zero(t, n.Stars)

	r := models.ReportDoc{ID: "r1"}.Resolve()
	require.Equal(t, "Título não disponível", r.Title)
	require.Empty(t, r.FileURL)
}

func TestParseSenderRole(t *testing.T) {
	cases := []struct {
		in      string
		want    models.SenderRole
		wantErr bool
	}{
		{in: "Client", want: models.Client},
		{in: "cliente", want: models.Client},
		{in: "Supplier", want: models.Supplier},
		{in: " Fornecedor ", want: models.Supplier},
		{in: "Investor", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := models.ParseSenderRole(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestFeedbackDocRoundTrip(t *testing.T) {
	fb := models.Feedback{
		ID:          "f1",
		CompanyID:   "c1",
		SentBy:      models.Client,
		Category:    "Sustentabilidade",
		Report:      "",
		IsAnonymous: true,
		CreatedAt:   1700000000000,
		UserID:      "u1",
	}

	doc := fb.Doc()
	require.Nil(t, doc.SubmissionToken)
	require.Equal(t, fb, doc.Resolve())
}
