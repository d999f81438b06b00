package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// ReportQuery selects the subject & semester of reports and statistics.
type ReportQuery struct {
	SubjectID  string `query:"subject_id"`
	SemesterID string `query:"semester_id"`
}

func (rq *ReportQuery) Bind(ctx echo.Context) error {
	if err := ctx.Bind(rq); err != nil {
		return errors.Wrap(err, "binding to ReportQuery")
	}
	rq.SubjectID = core.CleanString(rq.SubjectID)
	rq.SemesterID = core.CleanString(rq.SemesterID)

	var flds []core.FieldError
	if rq.SubjectID == "" {
		flds = append(flds, core.FieldError{Field: "subject_id", Error: "this field is required"})
	}
	if rq.SemesterID == "" {
		flds = append(flds, core.FieldError{Field: "semester_id", Error: "this field is required"})
	}
	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}
