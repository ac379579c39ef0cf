package pipeline

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/meridianlabs/visibility-cli/internal/model"
)

// BuildRows flattens both result sets into the stable row shape the store
// and the CSV report share. Visibility rows come first, in dispatch order,
// then sentiment rows.
func BuildRows(company model.Company, visibility []model.VisibilityResult, sentiment []model.SentimentResult) []model.ResultRow {
	rows := make([]model.ResultRow, 0, len(visibility)+len(sentiment))

	for _, r := range visibility {
		rows = append(rows, model.ResultRow{
			CompanyID: company.ID,
			Category:  model.PurposeVisibility,
			Provider:  r.Model.Provider,
			Model:     r.Model.ModelID,
			Prompt:    r.Prompt,
			RunIndex:  r.RunIndex,
			Mentioned: r.Mentioned,
			Mentions:  r.Mentions,
			Answer:    r.Answer,
			Sources:   model.JoinSources(r.Sources),
			Error:     r.Error,
			ErrorKind: r.ErrorKind,
		})
	}

	for _, r := range sentiment {
		rows = append(rows, model.ResultRow{
			CompanyID: company.ID,
			Category:  model.PurposeSentiment,
			Provider:  r.Model.Provider,
			Model:     r.Model.ModelID,
			Prompt:    r.Prompt,
			Sentiment: r.Sentiment,
			Answer:    r.Answer,
			Sources:   model.JoinSources(r.Sources),
			Error:     r.Error,
			ErrorKind: r.ErrorKind,
		})
	}

	return rows
}

var csvHeader = []string{
	"company_id", "category", "provider", "model", "prompt", "run",
	"mentioned", "mentions", "sentiment", "answer", "sources", "error", "error_kind",
}

// WriteCSV renders rows to w with a fixed header. Mentions collapse to
// name:category pairs separated by " | ".
func WriteCSV(w io.Writer, rows []model.ResultRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return eris.Wrap(err, "report: write header")
	}
	for _, row := range rows {
		record := []string{
			row.CompanyID,
			string(row.Category),
			row.Provider,
			row.Model,
			row.Prompt,
			strconv.Itoa(row.RunIndex),
			strconv.FormatBool(row.Mentioned),
			joinMentions(row.Mentions),
			string(row.Sentiment),
			row.Answer,
			row.Sources,
			row.Error,
			row.ErrorKind,
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrap(err, "report: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush")
}

func joinMentions(mentions []model.BrandMention) string {
	if len(mentions) == 0 {
		return ""
	}
	parts := make([]string, len(mentions))
	for i, m := range mentions {
		parts[i] = m.Name + ":" + string(m.Category)
	}
	return strings.Join(parts, " | ")
}
