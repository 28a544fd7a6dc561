// This file implements the translation memo cache.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/recipebox/pkg/types"
)

var _ types.TranslationTable = (*translationsTable)(nil)

type translationsTable struct {
	backend *Backend
}

const translationColumns = `id, source_text_hash, source_text, translated_text, source_lang, target_lang,
	created_at, expires_at`

func scanTranslation(row scanner) (*types.Translation, error) {
	var (
		t         types.Translation
		createdAt string
		expiresAt sql.NullString
	)
	err := row.Scan(&t.ID, &t.SourceTextHash, &t.SourceText, &t.TranslatedText, &t.SourceLang,
		&t.TargetLang, &createdAt, &expiresAt)
	if err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.ExpiresAt, err = parseNullTime(expiresAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// Lookup returns the entry for key unless it is missing or expired, both of
// which are ErrNotFound.
func (tt *translationsTable) Lookup(ctx context.Context, key types.TranslationKey) (*types.Translation, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var t *types.Translation
	err := tt.backend.withDB(func(db *sql.DB) error {
		row := db.QueryRowContext(ctx, `
			SELECT `+translationColumns+` FROM translation_cache
			WHERE source_text_hash = ? AND source_lang = ? AND target_lang = ?
				AND (expires_at IS NULL OR expires_at > ?)`,
			key.SourceTextHash, key.SourceLang, key.TargetLang, formatTime(nowUTC()),
		)
		var err error
		t, err = scanTranslation(row)
		if errors.Is(err, sql.ErrNoRows) {
			return types.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("looking up translation: %w", err)
		}
		return nil
	})
	return t, err
}

// Put stores t unless a live entry with the same key exists, in which case
// the stored entry wins and is returned. Expired entries are overwritten in
// place. Two callers racing on the same key both get the same row back.
func (tt *translationsTable) Put(ctx context.Context, t *types.Translation) (*types.Translation, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	now := nowUTC()

	var stored *types.Translation
	err := tt.backend.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO translation_cache
				(source_text_hash, source_text, translated_text, source_lang, target_lang, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (source_text_hash, source_lang, target_lang) DO UPDATE SET
				source_text = excluded.source_text,
				translated_text = excluded.translated_text,
				created_at = excluded.created_at,
				expires_at = excluded.expires_at
			WHERE translation_cache.expires_at IS NOT NULL AND translation_cache.expires_at <= ?`,
			t.SourceTextHash, t.SourceText, t.TranslatedText, t.SourceLang, t.TargetLang,
			formatTime(now), nullTime(t.ExpiresAt), formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("caching translation: %w", translateError(err))
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			tt.backend.logger.Debug("translation already cached",
				zap.String("source_text_hash", t.SourceTextHash),
				zap.String("source_lang", t.SourceLang),
				zap.String("target_lang", t.TargetLang))
		}

		row := tx.QueryRowContext(ctx, `
			SELECT `+translationColumns+` FROM translation_cache
			WHERE source_text_hash = ? AND source_lang = ? AND target_lang = ?`,
			t.SourceTextHash, t.SourceLang, t.TargetLang,
		)
		stored, err = scanTranslation(row)
		if err != nil {
			return fmt.Errorf("reading cached translation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Prune deletes every entry expired at now.
func (tt *translationsTable) Prune(ctx context.Context, now time.Time) (int64, error) {
	var removed int64
	err := tt.backend.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM translation_cache WHERE expires_at IS NOT NULL AND expires_at <= ?",
			formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("pruning translations: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	tt.backend.logger.Info("pruned translation cache", zap.Int64("removed", removed))
	return removed, nil
}
