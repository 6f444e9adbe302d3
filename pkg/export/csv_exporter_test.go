package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()
	out, err := exporter.Render(Dataset{
		Headers: []string{"#", "Admin Status", "Response"},
		Rows: [][]string{
			{"1", "NEW", "Grievance submitted"},
			{"2", "PENDING", "Taking a look, \"quoted\""},
		},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "#,Admin Status,Response", lines[0])
	require.Contains(t, lines[2], `"Taking a look, ""quoted"""`)
}

func TestCSVExporterRejectsEmptyHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"a", "b"},
		Rows:    [][]string{{"only one"}},
	})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()
	out, err := exporter.Render(Dataset{
		Headers: []string{"#", "Admin Status", "Response"},
		Rows: [][]string{
			{"1", "NEW", "Grievance submitted"},
			{"2", "PENDING", strings.Repeat("long response text ", 20)},
		},
	}, "Grievance grv-1 history")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(out), "%PDF"))
}
