package reports

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteSummaryCSV serialises the program summary to CSV.
func WriteSummaryCSV(w io.Writer, summary Summary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Section", "Key", "Count"}); err != nil {
		return err
	}
	for _, c := range summary.Cohorts {
		if err := writer.Write([]string{"Youth", c.Cohort, strconv.Itoa(c.Count)}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"Mentors", "active", strconv.Itoa(summary.ActiveMentors)}); err != nil {
		return err
	}
	for _, p := range summary.Projects {
		if err := writer.Write([]string{"Projects", p.Status, strconv.Itoa(p.Count)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteRosterCSV emits the mentor roster as CSV.
func WriteRosterCSV(w io.Writer, roster []RosterRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Name", "Email", "Expertise", "Businesses"}); err != nil {
		return err
	}
	for _, row := range roster {
		if err := writer.Write([]string{
			row.Name,
			row.Email,
			row.Expertise,
			strconv.Itoa(row.BusinessCount),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteDirectoryCSV emits the partner business directory as CSV.
func WriteDirectoryCSV(w io.Writer, directory []DirectoryRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Name", "Industry", "City", "Contact"}); err != nil {
		return err
	}
	for _, row := range directory {
		if err := writer.Write([]string{row.Name, row.Industry, row.City, row.ContactEmail}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
