package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bank.com/mop/internal/cases"
)

func sampleCase() cases.Case {
	created := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	return cases.Case{
		ID:                 "MOP-2026-007",
		BusinessName:       "Astana Coffee Roasters",
		BusinessType:       "Retail",
		RegistrationNumber: "REG-445566",
		MerchantCategory:   "Food & Beverage",
		DirectorName:       "Nurgul Omarova",
		DirectorEmail:      "nurgul@astanacoffee.kz",
		Status:             cases.StatusComplianceReview,
		AssignedTo:         "Unassigned",
		Priority:           "Normal",
		History: []cases.HistoryEntry{
			{Time: created.Add(2 * time.Hour), Action: "Review request sent to Compliance Team", Actor: "Aigerim Nurlan"},
			{Time: created, Action: "Case created", Actor: "Aigerim Nurlan"},
		},
		CreatedAt: created,
		UpdatedAt: created.Add(2 * time.Hour),
	}
}

func TestWriteCaseRegister(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCaseRegister(&buf, []cases.Case{sampleCase()}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Cases")
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus one case")
	require.Equal(t, "Case ID", rows[0][0])
	require.Equal(t, "MOP-2026-007", rows[1][0])
	require.Equal(t, cases.StatusComplianceReview, rows[1][7])
}

func TestWriteCaseRegisterEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCaseRegister(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Cases")
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}

func TestWriteCaseDetail(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCaseDetail(&buf, sampleCase()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	require.Equal(t, "Case ID", summary[0][0])
	require.Equal(t, "MOP-2026-007", summary[0][1])

	history, err := f.GetRows("History")
	require.NoError(t, err)
	require.Len(t, history, 3, "header plus two entries")
	require.Equal(t, "Review request sent to Compliance Team", history[1][1])
}
