package sqlerr

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/deppfellow/itembatch/internal/errs"
	"github.com/deppfellow/itembatch/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var uniqueConstraintColumn = regexp.MustCompile(`_([^_]+)_(?:key|ukey)$`)

// ErrCode returns the Code of the first *Error in err's chain, or Other.
func ErrCode(err error) Code {
	var sqlErr *Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code
	}
	return Other
}

// ConvertPgError normalizes a pgconn.PgError.
func ConvertPgError(src *pgconn.PgError) *Error {
	return &Error{
		Code:           MapCode(src.Code),
		Severity:       MapSeverity(src.Severity),
		DatabaseCode:   src.Code,
		Message:        src.Message,
		SchemaName:     src.SchemaName,
		TableName:      src.TableName,
		ColumnName:     src.ColumnName,
		DataTypeName:   src.DataTypeName,
		ConstraintName: src.ConstraintName,
		driverErr:      src,
	}
}

// generateErrorCode builds <ENTITY>_<ACTION>, e.g. ITEM_REQUIRED.
func generateErrorCode(tableName string, code Code) string {
	domain := strings.ToUpper(singular(tableName))
	if domain == "" {
		domain = "RECORD"
	}

	action := "ERROR"
	switch code {
	case ForeignKeyViolation:
		action = "NOT_FOUND"
	case UniqueViolation:
		action = "ALREADY_EXISTS"
	case NotNullViolation:
		action = "REQUIRED"
	case CheckViolation:
		action = "INVALID"
	}

	return domain + "_" + action
}

func singular(name string) string {
	if len(name) > 1 && strings.HasSuffix(strings.ToLower(name), "s") {
		return name[:len(name)-1]
	}
	return name
}

func humanize(text string) string {
	if text == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(text, "_", " "))
}

func entityName(tableName, columnName string) string {
	if col := strings.ToLower(columnName); strings.HasSuffix(col, "_id") {
		return humanize(strings.TrimSuffix(col, "_id"))
	}
	if tableName != "" {
		return humanize(singular(tableName))
	}
	return "record"
}

// uniqueColumn extracts the column from constraint names like
// items_email_key or unique_items_email.
func uniqueColumn(constraintName string) string {
	if strings.HasPrefix(constraintName, "unique_") {
		parts := strings.Split(constraintName, "_")
		if len(parts) >= 3 {
			return parts[len(parts)-1]
		}
	}
	if m := uniqueConstraintColumn.FindStringSubmatch(constraintName); len(m) > 1 {
		return m[1]
	}
	return ""
}

func userMessage(e *Error) string {
	entity := entityName(e.TableName, e.ColumnName)
	field := humanize(e.ColumnName)

	switch e.Code {
	case ForeignKeyViolation:
		return fmt.Sprintf("The referenced %s does not exist", entity)
	case UniqueViolation:
		identifier := "identifier"
		if col := uniqueColumn(e.ConstraintName); col != "" {
			identifier = humanize(col)
		}
		return fmt.Sprintf("A %s with this %s already exists", entity, identifier)
	case NotNullViolation:
		if field == "" {
			field = "field"
		}
		return fmt.Sprintf("The %s is required", field)
	case CheckViolation:
		if field != "" {
			return fmt.Sprintf("The %s value does not meet required conditions", field)
		}
		return "One or more values do not meet required conditions"
	default:
		return "An error occurred while processing your request"
	}
}

// HandleError converts an error returned by the data layer into an
// *errs.HTTPError. HTTP errors pass through unchanged; anything
// unrecognized becomes a 500.
func HandleError(err error) error {
	if errors.Is(err, &errs.HTTPError{}) {
		return err
	}

	if errors.Is(err, model.ErrItemNotFound) {
		return errs.NewNotFoundError("Item not found", true, nil)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.NewNotFoundError("Resource not found", false, nil)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return errs.NewInternalServerError()
	}

	sqlErr := ConvertPgError(pgErr)
	code := generateErrorCode(sqlErr.TableName, sqlErr.Code)
	message := userMessage(sqlErr)

	switch sqlErr.Code {
	case ForeignKeyViolation:
		return errs.NewBadRequestError(message, false, &code, nil, nil)
	case UniqueViolation, CheckViolation:
		return errs.NewBadRequestError(message, true, &code, nil, nil)
	case NotNullViolation:
		fields := []errs.FieldError{{Field: strings.ToLower(sqlErr.ColumnName), Error: "is required"}}
		return errs.NewBadRequestError(message, true, &code, fields, nil)
	default:
		return errs.NewInternalServerError()
	}
}
