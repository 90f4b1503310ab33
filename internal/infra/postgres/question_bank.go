package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"

	"studyhub-contest-service/internal/domain"
)

// QuestionBank reads the external question catalog through pgx. The bank is
// a read-only collaborator; this subsystem never writes to it.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

const questionColumns = `id, text, options, correct_option, explanation, subject, topic, difficulty, created_at`

func (b *QuestionBank) ListByTier(ctx context.Context, tier domain.Difficulty, filter domain.BankFilter, limit int) ([]domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM bank_questions WHERE difficulty = $1`
	args := []interface{}{string(tier)}

	if len(filter.Subjects) > 0 {
		args = append(args, filter.Subjects)
		query += ` AND subject = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	if len(filter.Topics) > 0 {
		args = append(args, filter.Topics)
		query += ` AND topic = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	args = append(args, limit)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bank: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, question)
	}
	return questions, rows.Err()
}

func (b *QuestionBank) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	result := make(map[string]domain.Question, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := b.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM bank_questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query bank by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		result[question.ID] = question
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuestion(row rowScanner) (domain.Question, error) {
	var (
		question   domain.Question
		rawOptions []byte
		difficulty string
	)
	err := row.Scan(
		&question.ID,
		&question.Text,
		&rawOptions,
		&question.CorrectOption,
		&question.Explanation,
		&question.Subject,
		&question.Topic,
		&difficulty,
		&question.CreatedAt,
	)
	if err != nil {
		return domain.Question{}, fmt.Errorf("scan question: %w", err)
	}
	if err := json.Unmarshal(rawOptions, &question.Options); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal options: %w", err)
	}
	question.Difficulty = domain.Difficulty(strings.ToLower(difficulty))
	return question, nil
}
