package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/trezcool/darasa/core/grading"
)

// balance places every student without a class, using the regulation in force.
func (cli *commandLine) balance() error {
	ctx := context.Background()
	reg, err := cli.schoolSvc.CurrentRegulation(ctx)
	if err != nil {
		return err
	}

	placements, err := cli.enrollSvc.AssignUnplacedStudents(ctx, reg)
	if err != nil {
		return err
	}
	if len(placements) == 0 {
		fmt.Fprintln(cli.out, "no student to place")
		return nil
	}

	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"Student", "Class", "New class"})
	for _, p := range placements {
		newClass := ""
		if p.NewClass {
			newClass = "yes"
		}
		table.Append([]string{p.StudentID, p.ClassName, newClass})
	}
	table.Render()
	fmt.Fprintf(cli.out, "%d student(s) placed\n", len(placements))
	return nil
}

// stats prints the pass rate of every class of the subject's grade in the semester.
func (cli *commandLine) stats(subjectID, semesterID string) error {
	stats, err := cli.gradingSvc.ComputeSchoolStatistics(context.Background(), subjectID, semesterID)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"Class", "Subject", "Semester", "Students", "Passed", "Failed", "Pass rate"})
	for _, st := range stats {
		table.Append([]string{
			st.Class,
			st.Subject,
			st.Semester,
			strconv.Itoa(st.Total),
			strconv.Itoa(st.Passed),
			strconv.Itoa(st.Failed),
			passRate(st),
		})
	}
	table.Render()
	return nil
}

// passRate colours the rate green when at least half of the class passes, red otherwise.
func passRate(st grading.ClassStatistics) string {
	rate := strconv.FormatFloat(st.PassRate, 'f', 2, 64) + "%"
	if st.Total == 0 {
		return rate
	}
	if st.PassRate >= 50 {
		return color.GreenString(rate)
	}
	return color.RedString(rate)
}

// regulation prints the regulation in force, then every change, newest first.
func (cli *commandLine) regulation() error {
	ctx := context.Background()
	reg, err := cli.schoolSvc.CurrentRegulation(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Regulation v%d: age %d-%d, %d students per class, %d students max\n",
		reg.Version, reg.MinAge, reg.MaxAge, reg.MaxClassSize, reg.MaxStudents)

	history, err := cli.schoolSvc.QueryRegulationHistory(ctx)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"Version", "Changed at", "Admin", "Ages", "Class size", "Max students"})
	for _, h := range history {
		row := []string{"", h.CreatedAt.Format("2006-01-02 15:04"), h.AdminID, "", "", ""}
		if r := h.Regulation; r != nil {
			row[0] = strconv.Itoa(r.Version)
			row[3] = fmt.Sprintf("%d-%d", r.MinAge, r.MaxAge)
			row[4] = strconv.Itoa(r.MaxClassSize)
			row[5] = strconv.Itoa(r.MaxStudents)
		}
		table.Append(row)
	}
	table.Render()
	return nil
}
