package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"chainindex/internal/domain"

	_ "modernc.org/sqlite"
)

// Repository is the embedded single-file store used for development and small
// deployments. It implements the same contract as the MySQL repository,
// including the string-vs-numeric max-height divergence: TEXT heights compare
// lexicographically unless explicitly cast.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := createSchema(db); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS blocks (
			network TEXT NOT NULL,
			height TEXT NOT NULL,
			block_hash TEXT NOT NULL DEFAULT '',
			proposer TEXT NOT NULL DEFAULT '',
			num_txs INTEGER NOT NULL DEFAULT 0,
			block_time INTEGER NOT NULL,
			signatures TEXT,
			app_hash TEXT NOT NULL DEFAULT '',
			total_gas_wanted INTEGER NOT NULL DEFAULT 0,
			total_gas_used INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (network, height)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS blocks_hash_idx ON blocks (network, block_hash)`,
		`CREATE INDEX IF NOT EXISTS blocks_time_idx ON blocks (network, block_time)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			network TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			height TEXT NOT NULL,
			status TEXT NOT NULL,
			fee TEXT,
			message_count INTEGER NOT NULL DEFAULT 0,
			msg_type TEXT NOT NULL DEFAULT '',
			first_message_type TEXT NOT NULL DEFAULT '',
			reason TEXT,
			tx_time INTEGER NOT NULL,
			messages TEXT,
			is_lite INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (network, tx_hash)
		)`,
		`CREATE INDEX IF NOT EXISTS tx_page_idx ON transactions (network, CAST(height AS INTEGER), tx_time)`,
		`CREATE INDEX IF NOT EXISTS tx_height_idx ON transactions (network, height)`,
		`CREATE INDEX IF NOT EXISTS tx_type_idx ON transactions (network, msg_type, is_lite, created_at)`,
		`CREATE TABLE IF NOT EXISTS tx_stats (
			network TEXT PRIMARY KEY,
			total_count INTEGER NOT NULL DEFAULT 0,
			latest_height INTEGER NOT NULL DEFAULT 0,
			count_by_type TEXT,
			count_24h INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS validators (
			network TEXT NOT NULL,
			consensus_addr TEXT NOT NULL,
			moniker TEXT NOT NULL DEFAULT '',
			operator_addr TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (network, consensus_addr)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) UpsertBlock(ctx context.Context, block domain.Block) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	signatures, err := json.Marshal(block.Signatures)
	if err != nil {
		return err
	}
	// Immutable except the hash backfill; the trailing clause turns a replay
	// that only collides on the unique (network, block_hash) index into a
	// no-op instead of an error.
	_, err = r.db.ExecContext(ctx, `INSERT INTO blocks (network, height, block_hash, proposer, num_txs, block_time, signatures, app_hash, total_gas_wanted, total_gas_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(network, height) DO UPDATE SET
			block_hash = CASE WHEN blocks.block_hash = '' THEN excluded.block_hash ELSE blocks.block_hash END
		ON CONFLICT DO NOTHING`,
		block.Network, block.Height, block.BlockHash, block.Proposer, block.NumTxs,
		block.Time.UTC().UnixNano(), string(signatures), block.AppHash, block.TotalGasWanted, block.TotalGasUsed)
	return err
}

const blockColumns = `network, height, block_hash, proposer, num_txs, block_time, signatures, app_hash, total_gas_wanted, total_gas_used`

func scanBlock(row *sql.Row) (domain.Block, bool, error) {
	var block domain.Block
	var blockTime int64
	var signatures sql.NullString
	err := row.Scan(&block.Network, &block.Height, &block.BlockHash, &block.Proposer, &block.NumTxs,
		&blockTime, &signatures, &block.AppHash, &block.TotalGasWanted, &block.TotalGasUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Block{}, false, nil
	}
	if err != nil {
		return domain.Block{}, false, err
	}
	block.Time = time.Unix(0, blockTime).UTC()
	if signatures.Valid && signatures.String != "" {
		if err := json.Unmarshal([]byte(signatures.String), &block.Signatures); err != nil {
			return domain.Block{}, false, err
		}
	}
	return block, true, nil
}

func (r *Repository) BlockByHeight(ctx context.Context, network, height string) (domain.Block, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	row := r.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE network = ? AND height = ?`, network, height)
	return scanBlock(row)
}

func (r *Repository) BlockByHash(ctx context.Context, network, hash string) (domain.Block, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	row := r.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE network = ? AND block_hash = ?`, network, hash)
	return scanBlock(row)
}

func (r *Repository) LatestBlock(ctx context.Context, network string) (domain.Block, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	row := r.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE network = ? ORDER BY CAST(height AS INTEGER) DESC LIMIT 1`, network)
	return scanBlock(row)
}

func (r *Repository) SumBlockTxsSince(ctx context.Context, network string, since time.Time) (int64, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var sum, count int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(num_txs), 0), COUNT(*) FROM blocks WHERE network = ? AND block_time >= ?`,
		network, since.UTC().UnixNano()).Scan(&sum, &count)
	return sum, count, err
}

func (r *Repository) SumBlockTxsLastN(ctx context.Context, network string, n int) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var sum int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(num_txs), 0) FROM (
			SELECT num_txs FROM blocks WHERE network = ? ORDER BY CAST(height AS INTEGER) DESC LIMIT ?
		)`, network, n).Scan(&sum)
	return sum, err
}

func (r *Repository) UpsertTransaction(ctx context.Context, tx domain.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fee, err := json.Marshal(tx.Fee)
	if err != nil {
		return err
	}
	var messages any
	if tx.Messages != nil {
		encoded, err := json.Marshal(tx.Messages)
		if err != nil {
			return err
		}
		messages = string(encoded)
	}
	isLite := 0
	if tx.IsLite {
		isLite = 1
	}
	// created_at is the record-creation time the retention window ages by; it
	// is set once and survives replays of the same hash.
	_, err = r.db.ExecContext(ctx, `INSERT INTO transactions (network, tx_hash, height, status, fee, message_count, msg_type, first_message_type, reason, tx_time, messages, is_lite, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(network, tx_hash) DO UPDATE SET
			height = excluded.height,
			status = excluded.status,
			fee = excluded.fee,
			message_count = excluded.message_count,
			msg_type = excluded.msg_type,
			first_message_type = excluded.first_message_type,
			reason = excluded.reason,
			tx_time = excluded.tx_time,
			messages = excluded.messages,
			is_lite = excluded.is_lite`,
		tx.Network, tx.TxHash, tx.Height, string(tx.Status), string(fee), tx.MessageCount,
		tx.Type, tx.FirstMessageType, tx.Reason, tx.Time.UTC().UnixNano(), messages, isLite,
		time.Now().UTC().UnixNano())
	return err
}

const txColumns = `network, tx_hash, height, status, fee, message_count, msg_type, first_message_type, reason, tx_time, messages, is_lite`

type txScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row txScanner) (domain.Transaction, error) {
	var tx domain.Transaction
	var status string
	var txTime int64
	var fee, reason, messages sql.NullString
	var isLite int
	if err := row.Scan(&tx.Network, &tx.TxHash, &tx.Height, &status, &fee, &tx.MessageCount,
		&tx.Type, &tx.FirstMessageType, &reason, &txTime, &messages, &isLite); err != nil {
		return domain.Transaction{}, err
	}
	tx.Status = domain.TxStatus(status)
	tx.Reason = reason.String
	tx.Time = time.Unix(0, txTime).UTC()
	tx.IsLite = isLite != 0
	if fee.Valid && fee.String != "" {
		if err := json.Unmarshal([]byte(fee.String), &tx.Fee); err != nil {
			return domain.Transaction{}, err
		}
	}
	if messages.Valid && messages.String != "" {
		if err := json.Unmarshal([]byte(messages.String), &tx.Messages); err != nil {
			return domain.Transaction{}, err
		}
	}
	return tx, nil
}

func (r *Repository) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *Repository) TransactionByHash(ctx context.Context, network, hash string) (domain.Transaction, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	row := r.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE network = ? AND tx_hash = ?`, network, hash)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transaction{}, false, nil
	}
	if err != nil {
		return domain.Transaction{}, false, err
	}
	return tx, true, nil
}

func (r *Repository) TransactionsByHeight(ctx context.Context, network, height string) ([]domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.queryTransactions(ctx, `SELECT `+txColumns+` FROM transactions WHERE network = ? AND height = ? ORDER BY tx_hash ASC`, network, height)
}

func (r *Repository) LatestTransactions(ctx context.Context, network string, limit int) ([]domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.queryTransactions(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE network = ?
		ORDER BY CAST(height AS INTEGER) DESC, tx_time DESC, tx_hash DESC
		LIMIT ?`, network, limit)
}

func (r *Repository) TransactionsBefore(ctx context.Context, network string, cursor domain.Cursor, limit int) ([]domain.Transaction, error) {
	heightNum, err := domain.HeightValue(cursor.Height)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.queryTransactions(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE network = ?
		AND (CAST(height AS INTEGER) < ? OR (CAST(height AS INTEGER) = ? AND tx_time < ?))
		ORDER BY CAST(height AS INTEGER) DESC, tx_time DESC, tx_hash DESC
		LIMIT ?`, network, heightNum, heightNum, cursor.Time.UTC().UnixNano(), limit)
}

func (r *Repository) TransactionsAfter(ctx context.Context, network string, cursor domain.Cursor, limit int) ([]domain.Transaction, error) {
	heightNum, err := domain.HeightValue(cursor.Height)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.queryTransactions(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE network = ?
		AND (CAST(height AS INTEGER) > ? OR (CAST(height AS INTEGER) = ? AND tx_time > ?))
		ORDER BY CAST(height AS INTEGER) ASC, tx_time ASC, tx_hash ASC
		LIMIT ?`, network, heightNum, heightNum, cursor.Time.UTC().UnixNano(), limit)
}

func (r *Repository) TransactionsPage(ctx context.Context, network string, page, limit int) ([]domain.Transaction, error) {
	if page < 1 {
		page = 1
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return r.queryTransactions(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE network = ?
		ORDER BY CAST(height AS INTEGER) DESC, tx_time DESC, tx_hash DESC
		LIMIT ? OFFSET ?`, network, limit, (page-1)*limit)
}

func (r *Repository) CountTransactions(ctx context.Context, network string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE network = ?`, network).Scan(&count)
	return count, err
}

func (r *Repository) TransactionCountsByType(ctx context.Context, network string) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT msg_type, COUNT(*) FROM transactions WHERE network = ? GROUP BY msg_type`, network)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var msgType string
		var count int64
		if err := rows.Scan(&msgType, &count); err != nil {
			return nil, err
		}
		counts[msgType] = count
	}
	return counts, rows.Err()
}

func (r *Repository) CountFullByTypeSince(ctx context.Context, network, msgType string, since time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var count int64
	// Ages by created_at so a catch-up over old chain timestamps still fills
	// the full-content quota.
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions
		WHERE network = ? AND msg_type = ? AND is_lite = 0 AND created_at >= ?`,
		network, msgType, since.UTC().UnixNano()).Scan(&count)
	return count, err
}

func (r *Repository) MaxHeightStringSort(ctx context.Context, network string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var height sql.NullString
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(height) FROM transactions WHERE network = ?`, network).Scan(&height); err != nil {
		return "", false, err
	}
	return height.String, height.Valid, nil
}

func (r *Repository) MaxHeightNumeric(ctx context.Context, network string) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var height sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(CAST(height AS INTEGER)) FROM transactions WHERE network = ?`, network).Scan(&height); err != nil {
		return 0, false, err
	}
	return height.Int64, height.Valid, nil
}

func (r *Repository) ListMissingFirstMessageType(ctx context.Context, network string, limit int) ([]domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return r.queryTransactions(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE network = ? AND first_message_type = ''
		ORDER BY CAST(height AS INTEGER) ASC
		LIMIT ?`, network, limit)
}

func (r *Repository) SetFirstMessageType(ctx context.Context, network, hash, msgType string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE transactions SET first_message_type = ? WHERE network = ? AND tx_hash = ?`,
		msgType, network, hash)
	return err
}

func (r *Repository) Stats(ctx context.Context, network string) (domain.TransactionStats, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var stats domain.TransactionStats
	var countByType sql.NullString
	var updatedAt int64
	err := r.db.QueryRowContext(ctx, `SELECT network, total_count, latest_height, count_by_type, count_24h, updated_at
		FROM tx_stats WHERE network = ?`, network).
		Scan(&stats.Network, &stats.TotalCount, &stats.LatestHeight, &countByType, &stats.Count24h, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TransactionStats{}, false, nil
	}
	if err != nil {
		return domain.TransactionStats{}, false, err
	}
	stats.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if countByType.Valid && countByType.String != "" {
		if err := json.Unmarshal([]byte(countByType.String), &stats.CountByType); err != nil {
			return domain.TransactionStats{}, false, err
		}
	}
	return stats, true, nil
}

func (r *Repository) PutStats(ctx context.Context, stats domain.TransactionStats) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	countByType, err := json.Marshal(stats.CountByType)
	if err != nil {
		return err
	}
	updatedAt := stats.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO tx_stats (network, total_count, latest_height, count_by_type, count_24h, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(network) DO UPDATE SET
			total_count = excluded.total_count,
			latest_height = excluded.latest_height,
			count_by_type = excluded.count_by_type,
			count_24h = excluded.count_24h,
			updated_at = excluded.updated_at`,
		stats.Network, stats.TotalCount, stats.LatestHeight, string(countByType), stats.Count24h, updatedAt.UTC().UnixNano())
	return err
}

func (r *Repository) Resolve(ctx context.Context, network, consensusAddr string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var moniker string
	err := r.db.QueryRowContext(ctx, `SELECT moniker FROM validators WHERE network = ? AND consensus_addr = ?`,
		network, domain.NormalizeConsensusAddr(consensusAddr)).Scan(&moniker)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return moniker, moniker != "", nil
}

func (r *Repository) UpsertValidator(ctx context.Context, network, consensusAddr, moniker, operatorAddr string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO validators (network, consensus_addr, moniker, operator_addr)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(network, consensus_addr) DO UPDATE SET
			moniker = excluded.moniker,
			operator_addr = excluded.operator_addr`,
		network, domain.NormalizeConsensusAddr(consensusAddr), moniker, operatorAddr)
	return err
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}
