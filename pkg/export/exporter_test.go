package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterDataset() Dataset {
	return Dataset{
		Title:   "Workshop A",
		Headers: []string{"Nome", "E-mail", "Presença"},
		Rows: [][]string{
			{"Ana Souza", "ana@example.com", "Sim"},
			{"João, Jr.", "joao@example.com", "Não"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(rosterDataset())
	require.NoError(t, err)
	assert.Equal(t, "Nome,E-mail,Presença\nAna Souza,ana@example.com,Sim\n\"João, Jr.\",joao@example.com,Não\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(rosterDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRenderRejectsRaggedRows(t *testing.T) {
	data := rosterDataset()
	data.Rows = append(data.Rows, []string{"only one"})

	_, err := NewCSVExporter().Render(data)
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestForFormat(t *testing.T) {
	csvExp, err := ForFormat(FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "csv", csvExp.Extension())

	pdfExp, err := ForFormat(FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdfExp.ContentType())

	_, err = ForFormat("xlsx")
	assert.Error(t, err)
}
