package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/noah-isme/student-roster-api/internal/dto"
	"github.com/noah-isme/student-roster-api/internal/models"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPage(w io.Writer, format string, page *dto.StudentPage) error {
	if format == "json" {
		return writeJSON(w, page)
	}
	if len(page.Students) == 0 {
		fmt.Fprintln(w, "No students found.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTUDENT ID\tFIRST NAME\tLAST NAME\tNICKNAME")
		for _, s := range page.Students {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.StudentID, s.FirstName, s.LastName, s.Nickname)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	p := page.Pagination
	fmt.Fprintf(w, "Page %d of %d (%d students, %d per page)\n", p.Page, p.TotalPages, p.Total, p.Limit)
	return nil
}

func printStudent(w io.Writer, format string, s *models.Student) error {
	if format == "json" {
		return writeJSON(w, s)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", s.ID)
	fmt.Fprintf(tw, "Student ID:\t%s\n", s.StudentID)
	fmt.Fprintf(tw, "First name:\t%s\n", s.FirstName)
	fmt.Fprintf(tw, "Last name:\t%s\n", s.LastName)
	fmt.Fprintf(tw, "Nickname:\t%s\n", s.Nickname)
	return tw.Flush()
}
