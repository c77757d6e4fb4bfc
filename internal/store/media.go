package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/abelbrown/gallery/internal/media"
)

// List returns the three raw collections. Chats are ordered by creation;
// attachments and projects newest first.
func (s *Store) List(ctx context.Context) (media.Sources, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := media.Sources{
		Chats:      []media.ChatGroup{},
		Unassigned: []media.Attachment{},
		Projects:   []media.VideoProject{},
	}

	chatRows, err := s.db.QueryContext(ctx, `SELECT id, name FROM chats ORDER BY created_at, id`)
	if err != nil {
		return src, fmt.Errorf("list chats: %w", err)
	}
	index := make(map[string]int)
	for chatRows.Next() {
		var g media.ChatGroup
		if err := chatRows.Scan(&g.ChatID, &g.ChatName); err != nil {
			chatRows.Close()
			return src, fmt.Errorf("scan chat: %w", err)
		}
		g.Attachments = []media.Attachment{}
		index[g.ChatID] = len(src.Chats)
		src.Chats = append(src.Chats, g)
	}
	chatRows.Close()
	if err := chatRows.Err(); err != nil {
		return src, fmt.Errorf("list chats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, url, storage_path, file_type, name, created_at
		FROM attachments
		ORDER BY created_at DESC, rowid
	`)
	if err != nil {
		return src, fmt.Errorf("list attachments: %w", err)
	}
	for rows.Next() {
		var a media.Attachment
		var chatID sql.NullString
		var ft string
		if err := rows.Scan(&a.ID, &chatID, &a.URL, &a.StoragePath, &ft, &a.Name, &a.CreatedAt); err != nil {
			rows.Close()
			return src, fmt.Errorf("scan attachment: %w", err)
		}
		a.FileType = media.FileType(ft)
		if i, ok := index[chatID.String]; chatID.Valid && ok {
			src.Chats[i].Attachments = append(src.Chats[i].Attachments, a)
		} else {
			src.Unassigned = append(src.Unassigned, a)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return src, fmt.Errorf("list attachments: %w", err)
	}

	projects, err := s.queryProjects(ctx, `
		SELECT id, name, project_type, video_url, thumbnail_url, storage_path,
			description, is_public, created_at
		FROM projects
		ORDER BY created_at DESC, rowid
	`)
	if err != nil {
		return src, err
	}
	src.Projects = projects
	return src, nil
}

// queryProjects executes a projects query. Caller must hold s.mu.
func (s *Store) queryProjects(ctx context.Context, query string, args ...any) ([]media.VideoProject, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := []media.VideoProject{}
	for rows.Next() {
		var p media.VideoProject
		var public int
		if err := rows.Scan(&p.ID, &p.Name, &p.ProjectType, &p.VideoURL, &p.ThumbnailURL,
			&p.StoragePath, &p.Description, &public, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.IsPublic = public != 0
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return out, nil
}

// Delete removes the record backing item: the project for project items,
// otherwise the attachment.
func (s *Store) Delete(ctx context.Context, item media.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := "attachments"
	id := item.ID
	if item.SourceType == media.SourceProject {
		table = "projects"
		if item.ProjectID != "" {
			id = item.ProjectID
		}
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", item.Key(), err)
	}
	return requireRow(res, item.Key())
}

// Rename sets the display name of the record backing item.
func (s *Store) Rename(ctx context.Context, item media.Item, name string) error {
	if blank(name) {
		return fmt.Errorf("rename %s: empty name", item.Key())
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	table := "attachments"
	id := item.ID
	if item.SourceType == media.SourceProject {
		table = "projects"
		if item.ProjectID != "" {
			id = item.ProjectID
		}
	}
	res, err := s.db.ExecContext(ctx, "UPDATE "+table+" SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return fmt.Errorf("rename %s: %w", item.Key(), err)
	}
	return requireRow(res, item.Key())
}

// ToggleVisibility flips a project's public flag and returns the new value.
func (s *Store) ToggleVisibility(ctx context.Context, projectID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE projects SET is_public = 1 - is_public WHERE id = ?`, projectID)
	if err != nil {
		return false, fmt.Errorf("toggle %s: %w", projectID, err)
	}
	if err := requireRow(res, "project:"+projectID); err != nil {
		return false, err
	}
	var public int
	if err := s.db.QueryRowContext(ctx, `SELECT is_public FROM projects WHERE id = ?`, projectID).Scan(&public); err != nil {
		return false, fmt.Errorf("toggle %s: %w", projectID, err)
	}
	return public != 0, nil
}

// Import inserts src, returning the number of new records. Existing IDs
// are left untouched (INSERT OR IGNORE); missing IDs and timestamps are
// filled in. Everything happens in one transaction.
func (s *Store) Import(ctx context.Context, src media.Sources) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	stamp := func(t time.Time) time.Time {
		if t.IsZero() {
			return now
		}
		return t.UTC()
	}

	inserted := 0
	count := func(res sql.Result) {
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted += int(n)
		}
	}

	insertAttachment := func(chatID any, a media.Attachment) error {
		if a.ID == "" {
			a.ID = newID()
		}
		ft := media.ResolveFileType(a.FileType, a.URL)
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO attachments (id, chat_id, url, storage_path, file_type, name, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, a.ID, chatID, a.URL, a.StoragePath, string(ft), a.Name, stamp(a.CreatedAt))
		if err != nil {
			return fmt.Errorf("import attachment %s: %w", a.ID, err)
		}
		count(res)
		return nil
	}

	for _, g := range src.Chats {
		if g.ChatID == "" {
			g.ChatID = newID()
		}
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO chats (id, name, created_at) VALUES (?, ?, ?)`,
			g.ChatID, g.ChatName, now)
		if err != nil {
			return 0, fmt.Errorf("import chat %s: %w", g.ChatID, err)
		}
		count(res)
		for _, a := range g.Attachments {
			if err := insertAttachment(g.ChatID, a); err != nil {
				return 0, err
			}
		}
	}
	for _, a := range src.Unassigned {
		if err := insertAttachment(nil, a); err != nil {
			return 0, err
		}
	}
	for _, p := range src.Projects {
		if p.ID == "" {
			p.ID = newID()
		}
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO projects (id, name, project_type, video_url, thumbnail_url,
				storage_path, description, is_public, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.Name, p.ProjectType, p.VideoURL, p.ThumbnailURL, p.StoragePath,
			p.Description, boolToInt(p.IsPublic), stamp(p.CreatedAt))
		if err != nil {
			return 0, fmt.Errorf("import project %s: %w", p.ID, err)
		}
		count(res)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return inserted, nil
}

// Counts returns the number of chats, attachments and projects.
func (s *Store) Counts(ctx context.Context) (chats, attachments, projects int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM chats), (SELECT COUNT(*) FROM attachments), (SELECT COUNT(*) FROM projects)
	`).Scan(&chats, &attachments, &projects)
	if err != nil {
		err = fmt.Errorf("count records: %w", err)
	}
	return
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
