package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chainindex/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if err := createSchema(db); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		// height is stored as the node's decimal string; height_num is the
		// numeric projection all ordering and keyset queries run on.
		`CREATE TABLE IF NOT EXISTS blocks (
			network VARCHAR(32) NOT NULL,
			height VARCHAR(32) NOT NULL,
			height_num BIGINT UNSIGNED GENERATED ALWAYS AS (CAST(height AS UNSIGNED)) STORED,
			block_hash VARCHAR(64) NOT NULL DEFAULT '',
			proposer VARCHAR(128) NOT NULL DEFAULT '',
			num_txs BIGINT NOT NULL DEFAULT 0,
			block_time DATETIME(6) NOT NULL,
			signatures MEDIUMTEXT NULL,
			app_hash VARCHAR(64) NOT NULL DEFAULT '',
			total_gas_wanted BIGINT NOT NULL DEFAULT 0,
			total_gas_used BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (network, height),
			KEY blocks_height_idx (network, height_num),
			UNIQUE KEY blocks_hash_idx (network, block_hash),
			KEY blocks_time_idx (network, block_time)
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			network VARCHAR(32) NOT NULL,
			tx_hash VARCHAR(64) NOT NULL,
			height VARCHAR(32) NOT NULL,
			height_num BIGINT UNSIGNED GENERATED ALWAYS AS (CAST(height AS UNSIGNED)) STORED,
			status VARCHAR(16) NOT NULL,
			fee MEDIUMTEXT NULL,
			message_count INT NOT NULL DEFAULT 0,
			msg_type VARCHAR(191) NOT NULL DEFAULT '',
			first_message_type VARCHAR(191) NOT NULL DEFAULT '',
			reason TEXT NULL,
			tx_time DATETIME(6) NOT NULL,
			messages MEDIUMTEXT NULL,
			is_lite TINYINT(1) NOT NULL DEFAULT 0,
			created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			PRIMARY KEY (network, tx_hash),
			KEY tx_page_idx (network, height_num, tx_time),
			KEY tx_height_idx (network, height),
			KEY tx_type_idx (network, msg_type, is_lite, created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS tx_stats (
			network VARCHAR(32) NOT NULL,
			total_count BIGINT NOT NULL DEFAULT 0,
			latest_height BIGINT NOT NULL DEFAULT 0,
			count_by_type MEDIUMTEXT NULL,
			count_24h BIGINT NOT NULL DEFAULT 0,
			updated_at DATETIME(6) NOT NULL,
			PRIMARY KEY (network)
		)`,
		`CREATE TABLE IF NOT EXISTS validators (
			network VARCHAR(32) NOT NULL,
			consensus_addr VARCHAR(128) NOT NULL,
			moniker VARCHAR(191) NOT NULL DEFAULT '',
			operator_addr VARCHAR(128) NOT NULL DEFAULT '',
			PRIMARY KEY (network, consensus_addr)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	// Rows written before the column existed are picked up by the
	// first-message-type backfill.
	if err := ensureColumn(db, "transactions", "first_message_type", "VARCHAR(191) NOT NULL DEFAULT ''"); err != nil {
		return err
	}
	if err := ensureColumn(db, "transactions", "is_lite", "TINYINT(1) NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	if err := ensureColumn(db, "transactions", "created_at", "DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)"); err != nil {
		return err
	}
	if err := ensureColumn(db, "blocks", "total_gas_wanted", "BIGINT NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	if err := ensureColumn(db, "blocks", "total_gas_used", "BIGINT NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	return nil
}

func ensureColumn(db *sql.DB, table, column, definition string) error {
	var count int
	row := db.QueryRow(
		`SELECT COUNT(*) FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?`,
		table,
		column,
	)
	if err := row.Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)
	_, err := db.Exec(stmt)
	return err
}

func (r *Repository) UpsertBlock(ctx context.Context, block domain.Block) error {
	ctx, span := startDBSpan(ctx, "mysql.UpsertBlock",
		attribute.String("chain.network", block.Network),
		attribute.String("block.height", block.Height),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	signatures, err := json.Marshal(block.Signatures)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	// A stored block is immutable; the only allowed update is filling a hash
	// that was missing on the first write. The unique hash key routes a replay
	// of a known hash under any height into the same harmless update.
	_, err = r.db.ExecContext(ctx, `INSERT INTO blocks (network, height, block_hash, proposer, num_txs, block_time, signatures, app_hash, total_gas_wanted, total_gas_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			block_hash = IF(block_hash = '', VALUES(block_hash), block_hash)`,
		block.Network, block.Height, block.BlockHash, block.Proposer, block.NumTxs,
		block.Time.UTC(), string(signatures), block.AppHash, block.TotalGasWanted, block.TotalGasUsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

const blockColumns = `network, height, block_hash, proposer, num_txs, block_time, signatures, app_hash, total_gas_wanted, total_gas_used`

func (r *Repository) scanBlock(row *sql.Row) (domain.Block, bool, error) {
	var block domain.Block
	var signatures sql.NullString
	err := row.Scan(&block.Network, &block.Height, &block.BlockHash, &block.Proposer, &block.NumTxs,
		&block.Time, &signatures, &block.AppHash, &block.TotalGasWanted, &block.TotalGasUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Block{}, false, nil
	}
	if err != nil {
		return domain.Block{}, false, err
	}
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
	return r.scanBlock(row)
}

func (r *Repository) BlockByHash(ctx context.Context, network, hash string) (domain.Block, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	row := r.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE network = ? AND block_hash = ?`, network, hash)
	return r.scanBlock(row)
}

func (r *Repository) LatestBlock(ctx context.Context, network string) (domain.Block, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	row := r.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE network = ? ORDER BY height_num DESC LIMIT 1`, network)
	return r.scanBlock(row)
}

func (r *Repository) SumBlockTxsSince(ctx context.Context, network string, since time.Time) (int64, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var sum, count int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(num_txs), 0), COUNT(*) FROM blocks WHERE network = ? AND block_time >= ?`,
		network, since.UTC()).Scan(&sum, &count)
	return sum, count, err
}

func (r *Repository) SumBlockTxsLastN(ctx context.Context, network string, n int) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var sum int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(num_txs), 0) FROM (
			SELECT num_txs FROM blocks WHERE network = ? ORDER BY height_num DESC LIMIT ?
		) recent`, network, n).Scan(&sum)
	return sum, err
}

func (r *Repository) UpsertTransaction(ctx context.Context, tx domain.Transaction) error {
	ctx, span := startDBSpan(ctx, "mysql.UpsertTransaction",
		attribute.String("chain.network", tx.Network),
		attribute.String("tx.hash", tx.TxHash),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fee, err := json.Marshal(tx.Fee)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	var messages any
	if tx.Messages != nil {
		encoded, err := json.Marshal(tx.Messages)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		messages = string(encoded)
	}
	isLite := 0
	if tx.IsLite {
		isLite = 1
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO transactions (network, tx_hash, height, status, fee, message_count, msg_type, first_message_type, reason, tx_time, messages, is_lite)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			height = VALUES(height),
			status = VALUES(status),
			fee = VALUES(fee),
			message_count = VALUES(message_count),
			msg_type = VALUES(msg_type),
			first_message_type = VALUES(first_message_type),
			reason = VALUES(reason),
			tx_time = VALUES(tx_time),
			messages = VALUES(messages),
			is_lite = VALUES(is_lite)`,
		tx.Network, tx.TxHash, tx.Height, string(tx.Status), string(fee), tx.MessageCount,
		tx.Type, tx.FirstMessageType, tx.Reason, tx.Time.UTC(), messages, isLite)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

const txColumns = `network, tx_hash, height, status, fee, message_count, msg_type, first_message_type, reason, tx_time, messages, is_lite`

type txScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row txScanner) (domain.Transaction, error) {
	var tx domain.Transaction
	var status string
	var fee, reason, messages sql.NullString
	var isLite int
	if err := row.Scan(&tx.Network, &tx.TxHash, &tx.Height, &status, &fee, &tx.MessageCount,
		&tx.Type, &tx.FirstMessageType, &reason, &tx.Time, &messages, &isLite); err != nil {
		return domain.Transaction{}, err
	}
	tx.Status = domain.TxStatus(status)
	tx.Reason = reason.String
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
	ctx, span := startDBSpan(ctx, "mysql.LatestTransactions",
		attribute.String("chain.network", network),
		attribute.Int("page.limit", limit),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	txs, err := r.queryTransactions(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE network = ?
		ORDER BY height_num DESC, tx_time DESC, tx_hash DESC
		LIMIT ?`, network, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return txs, err
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
		AND (height_num < ? OR (height_num = ? AND tx_time < ?))
		ORDER BY height_num DESC, tx_time DESC, tx_hash DESC
		LIMIT ?`, network, heightNum, heightNum, cursor.Time.UTC(), limit)
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
		AND (height_num > ? OR (height_num = ? AND tx_time > ?))
		ORDER BY height_num ASC, tx_time ASC, tx_hash ASC
		LIMIT ?`, network, heightNum, heightNum, cursor.Time.UTC(), limit)
}

func (r *Repository) TransactionsPage(ctx context.Context, network string, page, limit int) ([]domain.Transaction, error) {
	if page < 1 {
		page = 1
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return r.queryTransactions(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE network = ?
		ORDER BY height_num DESC, tx_time DESC, tx_hash DESC
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
	// created_at, not tx_time: the retention window must age by save time so
	// a historical catch-up still hits the full-content ceiling.
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions
		WHERE network = ? AND msg_type = ? AND is_lite = 0 AND created_at >= ?`,
		network, msgType, since.UTC()).Scan(&count)
	return count, err
}

// MaxHeightStringSort runs MAX over the VARCHAR column, so it inherits string
// collation; MaxHeightNumeric runs it over the numeric projection. The
// aggregator reconciles the two.
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
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(height_num) FROM transactions WHERE network = ?`, network).Scan(&height); err != nil {
		return 0, false, err
	}
	return height.Int64, height.Valid, nil
}

func (r *Repository) ListMissingFirstMessageType(ctx context.Context, network string, limit int) ([]domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return r.queryTransactions(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE network = ? AND first_message_type = ''
		ORDER BY height_num ASC
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
	err := r.db.QueryRowContext(ctx, `SELECT network, total_count, latest_height, count_by_type, count_24h, updated_at
		FROM tx_stats WHERE network = ?`, network).
		Scan(&stats.Network, &stats.TotalCount, &stats.LatestHeight, &countByType, &stats.Count24h, &stats.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TransactionStats{}, false, nil
	}
	if err != nil {
		return domain.TransactionStats{}, false, err
	}
	if countByType.Valid && countByType.String != "" {
		if err := json.Unmarshal([]byte(countByType.String), &stats.CountByType); err != nil {
			return domain.TransactionStats{}, false, err
		}
	}
	return stats, true, nil
}

func (r *Repository) PutStats(ctx context.Context, stats domain.TransactionStats) error {
	ctx, span := startDBSpan(ctx, "mysql.PutStats", attribute.String("chain.network", stats.Network))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	countByType, err := json.Marshal(stats.CountByType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	updatedAt := stats.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO tx_stats (network, total_count, latest_height, count_by_type, count_24h, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			total_count = VALUES(total_count),
			latest_height = VALUES(latest_height),
			count_by_type = VALUES(count_by_type),
			count_24h = VALUES(count_24h),
			updated_at = VALUES(updated_at)`,
		stats.Network, stats.TotalCount, stats.LatestHeight, string(countByType), stats.Count24h, updatedAt.UTC())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Resolve maps a raw consensus address to a stored validator moniker.
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

// UpsertValidator refreshes one validator directory entry.
func (r *Repository) UpsertValidator(ctx context.Context, network, consensusAddr, moniker, operatorAddr string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO validators (network, consensus_addr, moniker, operator_addr)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			moniker = VALUES(moniker),
			operator_addr = VALUES(operator_addr)`,
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

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("chainindex/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}
