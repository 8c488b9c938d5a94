package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MimeLyc/hardsub-translator/internal/jobs"
)

func (s *Store) LoadJobs(ctx context.Context) ([]*jobs.Job, error) {
	rows, err := s.query(
		ctx,
		`SELECT id, source, dedupe_key, payload_json, status, error, result_json, created_at, updated_at
		 FROM jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.Job, 0)
	for rows.Next() {
		var item jobs.Job
		var status, payloadJSON, resultJSON string
		if err := rows.Scan(
			&item.ID,
			&item.Source,
			&item.DedupeKey,
			&payloadJSON,
			&status,
			&item.Error,
			&resultJSON,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadJSON), &item.Payload); err != nil {
			return nil, fmt.Errorf("decode payload of job %s: %w", item.ID, err)
		}
		if resultJSON != "" {
			item.Result = &jobs.Result{}
			if err := json.Unmarshal([]byte(resultJSON), item.Result); err != nil {
				return nil, fmt.Errorf("decode result of job %s: %w", item.ID, err)
			}
		}
		item.Status = jobs.Status(status)
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Store) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.exec(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

func (s *Store) UpsertJob(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return err
	}
	var result []byte
	if job.Result != nil {
		if result, err = json.Marshal(job.Result); err != nil {
			return err
		}
	}
	_, err = s.exec(
		ctx,
		`INSERT INTO jobs (
			id, source, dedupe_key, payload_json, status, error, result_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source=excluded.source,
			dedupe_key=excluded.dedupe_key,
			payload_json=excluded.payload_json,
			status=excluded.status,
			error=excluded.error,
			result_json=excluded.result_json,
			updated_at=excluded.updated_at`,
		job.ID,
		job.Source,
		job.DedupeKey,
		string(payload),
		string(job.Status),
		job.Error,
		string(result),
		job.CreatedAt.UTC(),
		job.UpdatedAt.UTC(),
	)
	return err
}
