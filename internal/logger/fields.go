package logger

import (
	"strings"

	"github.com/spigell/jobradar/internal/posting"
	"go.uber.org/zap"
)

const (
	// FieldApp names the binary in every entry.
	FieldApp = "app"
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"

	FieldPostingID = "posting_id"
	FieldSource    = "source"
	FieldTitle     = "title"
	FieldCompany   = "company"
	FieldChannel   = "channel"
	FieldGroup     = "query_group"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	logger = OrNop(logger)
	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields returns standard zap fields that describe the AI provider and model.
// Empty values are ignored to keep log entries compact when information is missing.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithCommonFields attaches the common AI fields to the provided logger.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// PostingFields describes a posting in log entries. The id is omitted until
// the posting has been stored.
func PostingFields(p *posting.Posting) []zap.Field {
	if p == nil {
		return nil
	}

	fields := make([]zap.Field, 0, 4)
	if p.ID > 0 {
		fields = append(fields, zap.Int64(FieldPostingID, p.ID))
	}
	fields = append(fields, StringFields(
		StringField{Key: FieldSource, Value: p.Source},
		StringField{Key: FieldTitle, Value: p.Title},
		StringField{Key: FieldCompany, Value: p.Company},
	)...)

	return fields
}
