package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MimeLyc/hardsub-translator/internal/service"
)

func (s *Store) CreateVideo(ctx context.Context, v *service.VideoRecord) error {
	if v == nil || v.ID == "" {
		return fmt.Errorf("video record needs an id")
	}
	_, err := s.exec(
		ctx,
		`INSERT INTO videos (id, file_name, source_path, output_path, video_url, profile, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.FileName, v.SourcePath, v.OutputPath, v.VideoURL, v.Profile, v.CreatedAt.UTC(),
	)
	return err
}

func (s *Store) CreateSubtitle(ctx context.Context, sub *service.SubtitleRecord) error {
	if sub == nil || sub.ID == "" {
		return fmt.Errorf("subtitle record needs an id")
	}
	_, err := s.exec(
		ctx,
		`INSERT INTO subtitles (id, video_id, kind, language, path, url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.VideoID, string(sub.Kind), sub.Language, sub.Path, sub.URL, sub.CreatedAt.UTC(),
	)
	return err
}

// UpdateSubtitle replaces the file location of an existing subtitle
func (s *Store) UpdateSubtitle(ctx context.Context, sub *service.SubtitleRecord) error {
	res, err := s.exec(ctx, `UPDATE subtitles SET path = ?, url = ? WHERE id = ?`, sub.Path, sub.URL, sub.ID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (s *Store) GetVideo(ctx context.Context, id string) (*service.VideoRecord, error) {
	row := s.queryRow(
		ctx,
		`SELECT id, file_name, source_path, output_path, video_url, profile, created_at
		 FROM videos WHERE id = ?`,
		id,
	)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

// ListVideos returns videos newest first
func (s *Store) ListVideos(ctx context.Context, offset, limit int) ([]*service.VideoRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.query(
		ctx,
		`SELECT id, file_name, source_path, output_path, video_url, profile, created_at
		 FROM videos ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*service.VideoRecord, 0)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, v)
	}
	return ret, rows.Err()
}

// ListSubtitles returns the subtitles of a video, original first
func (s *Store) ListSubtitles(ctx context.Context, videoID string) ([]*service.SubtitleRecord, error) {
	rows, err := s.query(
		ctx,
		`SELECT id, video_id, kind, language, path, url, created_at
		 FROM subtitles WHERE video_id = ? ORDER BY kind ASC, created_at ASC`,
		videoID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*service.SubtitleRecord, 0)
	for rows.Next() {
		var sub service.SubtitleRecord
		var kind string
		if err := rows.Scan(&sub.ID, &sub.VideoID, &kind, &sub.Language, &sub.Path, &sub.URL, &sub.CreatedAt); err != nil {
			return nil, err
		}
		sub.Kind = service.SubtitleKind(kind)
		ret = append(ret, &sub)
	}
	return ret, rows.Err()
}

// DeleteVideo removes a video together with its subtitles
func (s *Store) DeleteVideo(ctx context.Context, id string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, rebind(s.driver, `DELETE FROM subtitles WHERE video_id = ?`), id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, rebind(s.driver, `DELETE FROM videos WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if err = expectRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVideo(row scanner) (*service.VideoRecord, error) {
	var v service.VideoRecord
	if err := row.Scan(&v.ID, &v.FileName, &v.SourcePath, &v.OutputPath, &v.VideoURL, &v.Profile, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
