package mesqueryctl

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/duckmesh/mesquery/internal/export"
	"github.com/duckmesh/mesquery/internal/query"
)

func renderIntent(w io.Writer, resp recognizeResponse) error {
	lines := []string{
		"Intent:     " + resp.Backend.RecognizedIntent + " (" + resp.Type + ")",
		"Confidence: " + strconv.FormatFloat(resp.Confidence, 'f', 2, 64),
		"Metric:     " + resp.Entities.Metric,
	}
	if resp.Entities.TimeRange != "" {
		lines = append(lines, "Time range: "+resp.Entities.TimeRange)
	}
	if resp.Entities.TableName != nil {
		lines = append(lines, "Table:      "+*resp.Entities.TableName)
	}
	if len(resp.Backend.MethodsUsed) > 0 {
		lines = append(lines, "Methods:    "+strings.Join(resp.Backend.MethodsUsed, ", "))
	}
	title := pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Intent")
	if _, err := fmt.Fprintln(w, pterm.DefaultBox.WithTitle(title).WithPadding(1).Sprint(strings.Join(lines, "\n"))); err != nil {
		return err
	}
	return renderList(w, "Clarifications", resp.Clarifications)
}

func renderPlan(w io.Writer, plan query.QueryPlan) error {
	if plan.RequiresClarification {
		if _, err := fmt.Fprintln(w, pterm.Warning.Sprint(plan.ClarificationMessage)); err != nil {
			return err
		}
		return renderList(w, "Questions", plan.QueryIntent.ClarificationQuestions)
	}

	details := plan.GeneratedSQL
	if plan.Explanation != "" {
		details += "\n\n" + plan.Explanation
	}
	title := pterm.NewStyle(pterm.FgGreen, pterm.Bold).Sprintf("SQL (confidence %.2f)", plan.SQLConfidence)
	if _, err := fmt.Fprintln(w, pterm.DefaultBox.WithTitle(title).WithPadding(1).Sprint(details)); err != nil {
		return err
	}
	return renderList(w, "Variants", plan.SuggestedSQLVariants)
}

func renderResult(w io.Writer, result query.QueryResult) error {
	if !result.Success {
		_, err := fmt.Fprintln(w, pterm.Error.Sprint(result.ErrorMessage))
		return err
	}
	if len(result.Data) > 0 {
		data := pterm.TableData{result.Columns}
		for _, row := range result.Data {
			cells := make([]string, len(result.Columns))
			for i, column := range result.Columns {
				value, _ := row.Get(column)
				cells[i] = formatCell(value)
			}
			data = append(data, cells)
		}
		table, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
		if err != nil {
			return fmt.Errorf("render table: %w", err)
		}
		if _, err := fmt.Fprintln(w, table); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s (%d rows, %.1f ms, %s)\n", result.Summary, result.RowsCount, result.QueryTimeMs, result.VisualizationType)
	return err
}

func renderValidation(w io.Writer, resp validateResponse) error {
	if resp.IsValid {
		if _, err := fmt.Fprintln(w, pterm.Success.Sprint("SQL is valid")); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintln(w, pterm.Error.Sprint("SQL is not valid")); err != nil {
			return err
		}
	}
	if err := renderList(w, "Errors", resp.Errors); err != nil {
		return err
	}
	return renderList(w, "Warnings", resp.Warnings)
}

func renderRecommendations(w io.Writer, items []recommendation) error {
	data := pterm.TableData{{"Title", "Question", "Category"}}
	for _, item := range items {
		data = append(data, []string{item.Title, item.NaturalLanguage, item.Category})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	_, err = fmt.Fprintln(w, table)
	return err
}

func renderSchema(w io.Writer, resp schemaResponse) error {
	updated := "never"
	if resp.UpdatedAt != nil {
		updated = resp.UpdatedAt.UTC().Format("2006-01-02 15:04:05Z")
	}
	if _, err := fmt.Fprintf(w, "%d tables, %d columns, updated %s\n", resp.Summary.Tables, resp.Summary.Columns, updated); err != nil {
		return err
	}
	if len(resp.Summary.TableNames) == 0 {
		return nil
	}
	names := append([]string(nil), resp.Summary.TableNames...)
	sort.Strings(names)
	data := pterm.TableData{{"Table", "Columns"}}
	for _, name := range names {
		data = append(data, []string{name, strconv.Itoa(resp.Summary.ColumnCountByTable[name])})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	_, err = fmt.Fprintln(w, table)
	return err
}

func renderExport(w io.Writer, summary export.Summary) error {
	location := summary.Key
	if summary.Bucket != "" {
		location = summary.Bucket + "/" + summary.Key
	}
	_, err := fmt.Fprintln(w, pterm.Success.Sprintf("exported %d rows (%d bytes) to %s", summary.Rows, summary.Size, location))
	return err
}

func renderList(w io.Writer, title string, items []string) error {
	if len(items) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, title+":"); err != nil {
		return err
	}
	for _, item := range items {
		if _, err := fmt.Fprintln(w, "  - "+item); err != nil {
			return err
		}
	}
	return nil
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}
