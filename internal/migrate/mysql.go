package migrate

// mysqlGameColumns is the catalog column list shared by the games table
// and both pending queues. Inserts always supply every column, so TEXT
// columns carry no defaults.
const mysqlGameColumns = `
	app_id BIGINT NOT NULL,
	name VARCHAR(255) NOT NULL,
	release_date DATETIME NULL,
	required_age INT NOT NULL DEFAULT 0,
	price DOUBLE NOT NULL DEFAULT 0,
	detailed_description TEXT,
	about_game TEXT,
	short_description TEXT,
	reviews TEXT,
	website VARCHAR(255) NOT NULL DEFAULT '',
	support_url VARCHAR(255) NOT NULL DEFAULT '',
	support_email VARCHAR(255) NOT NULL DEFAULT '',
	header_image VARCHAR(255) NOT NULL DEFAULT '',
	windows TINYINT(1) NOT NULL DEFAULT 0,
	mac TINYINT(1) NOT NULL DEFAULT 0,
	linux TINYINT(1) NOT NULL DEFAULT 0,
	metacritic_score INT NOT NULL DEFAULT 0,
	metacritic_url VARCHAR(255) NOT NULL DEFAULT '',
	achievements INT NOT NULL DEFAULT 0,
	recommendations INT NOT NULL DEFAULT 0,
	notes TEXT,
	supported_languages TEXT,
	full_audio_languages TEXT,
	developers TEXT,
	publishers TEXT,
	categories TEXT,
	genres TEXT,
	screenshots TEXT,
	movies TEXT,
	user_score DOUBLE NOT NULL DEFAULT 0,
	score_rank VARCHAR(64) NOT NULL DEFAULT '',
	positive_reviews INT NOT NULL DEFAULT 0,
	negative_reviews INT NOT NULL DEFAULT 0,
	estimated_owners_min BIGINT NOT NULL DEFAULT 0,
	estimated_owners_max BIGINT NOT NULL DEFAULT 0,
	avg_playtime_forever INT NOT NULL DEFAULT 0,
	avg_playtime_2weeks INT NOT NULL DEFAULT 0,
	median_playtime_forever INT NOT NULL DEFAULT 0,
	median_playtime_2weeks INT NOT NULL DEFAULT 0,
	peak_ccu INT NOT NULL DEFAULT 0,
	tags TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL`

const mysqlPendingColumns = mysqlGameColumns + `,
	sync_status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
	enqueued_at DATETIME NOT NULL,
	last_sync_attempt DATETIME NULL,
	sync_retries INT NOT NULL DEFAULT 0,
	error_message TEXT`

type mysqlDialect struct{}

// MySQL returns the production dialect.
func MySQL() Dialect { return mysqlDialect{} }

func (mysqlDialect) CreateMaster() []string {
	return []string{
		"CREATE TABLE IF NOT EXISTS games (" + mysqlGameColumns + ", PRIMARY KEY (app_id)) ENGINE=InnoDB",
		"CREATE TABLE IF NOT EXISTS pending_windows_games (" + mysqlPendingColumns + ", PRIMARY KEY (app_id)) ENGINE=InnoDB",
		"CREATE TABLE IF NOT EXISTS pending_multi_os_games (" + mysqlPendingColumns + ", PRIMARY KEY (app_id)) ENGINE=InnoDB",
		`CREATE TABLE IF NOT EXISTS node_status (
			node_name VARCHAR(32) NOT NULL,
			is_available TINYINT(1) NOT NULL DEFAULT 1,
			last_checked DATETIME NOT NULL,
			last_sync DATETIME NULL,
			failure_count INT NOT NULL DEFAULT 0,
			last_error TEXT,
			PRIMARY KEY (node_name)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS transaction_log (
			log_id BIGINT NOT NULL AUTO_INCREMENT,
			transaction_id VARCHAR(36) NOT NULL,
			node_id INT NOT NULL,
			operation VARCHAR(16) NOT NULL,
			record_id BIGINT NULL,
			old_data TEXT,
			new_data TEXT,
			timestamp DATETIME NOT NULL,
			status VARCHAR(16) NOT NULL,
			error_message TEXT,
			processed TINYINT(1) NOT NULL DEFAULT 0,
			PRIMARY KEY (log_id),
			KEY idx_txlog_unprocessed (processed, status)
		) ENGINE=InnoDB`,
	}
}

func (mysqlDialect) CreateSlave() []string {
	return []string{
		"CREATE TABLE IF NOT EXISTS games (" + mysqlGameColumns + ", PRIMARY KEY (app_id)) ENGINE=InnoDB",
	}
}

func (mysqlDialect) DropMaster() []string {
	return []string{
		"DROP TABLE IF EXISTS games",
		"DROP TABLE IF EXISTS pending_windows_games",
		"DROP TABLE IF EXISTS pending_multi_os_games",
		"DROP TABLE IF EXISTS node_status",
		"DROP TABLE IF EXISTS transaction_log",
	}
}

func (mysqlDialect) DropSlave() []string {
	return []string{"DROP TABLE IF EXISTS games"}
}
