package storage

// Table and column names match the tables the admin API reads.

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS films (
		id SERIAL PRIMARY KEY,
		name VARCHAR NOT NULL UNIQUE,
		description TEXT,
		cover_url VARCHAR,
		kp_rate DOUBLE PRECISION,
		imdb_rate DOUBLE PRECISION,
		duration INTEGER,
		country VARCHAR,
		year INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS genres (
		id SERIAL PRIMARY KEY,
		name VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS film_genre (
		film_id INTEGER REFERENCES films (id),
		genre_id INTEGER REFERENCES genres (id)
	)`,
	`CREATE TABLE IF NOT EXISTS seanses (
		id SERIAL PRIMARY KEY,
		beginning_at TIMESTAMP NOT NULL,
		finishing_at TIMESTAMP NOT NULL,
		film_id INTEGER REFERENCES films (id),
		cinema VARCHAR,
		UNIQUE (beginning_at, finishing_at, film_id, cinema)
	)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS films (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE,
		description TEXT,
		cover_url VARCHAR(1024),
		kp_rate DOUBLE,
		imdb_rate DOUBLE,
		duration INT,
		country VARCHAR(255),
		year INT
	) CHARACTER SET utf8mb4`,
	`CREATE TABLE IF NOT EXISTS genres (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255)
	) CHARACTER SET utf8mb4`,
	`CREATE TABLE IF NOT EXISTS film_genre (
		film_id INT,
		genre_id INT,
		FOREIGN KEY (film_id) REFERENCES films (id),
		FOREIGN KEY (genre_id) REFERENCES genres (id)
	)`,
	`CREATE TABLE IF NOT EXISTS seanses (
		id INT AUTO_INCREMENT PRIMARY KEY,
		beginning_at DATETIME NOT NULL,
		finishing_at DATETIME NOT NULL,
		film_id INT,
		cinema VARCHAR(255),
		UNIQUE KEY seanses_natural_key (beginning_at, finishing_at, film_id, cinema),
		FOREIGN KEY (film_id) REFERENCES films (id)
	) CHARACTER SET utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS films (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		cover_url TEXT,
		kp_rate REAL,
		imdb_rate REAL,
		duration INTEGER,
		country TEXT,
		year INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS genres (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS film_genre (
		film_id INTEGER REFERENCES films (id),
		genre_id INTEGER REFERENCES genres (id)
	)`,
	`CREATE TABLE IF NOT EXISTS seanses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		beginning_at DATETIME NOT NULL,
		finishing_at DATETIME NOT NULL,
		film_id INTEGER REFERENCES films (id),
		cinema TEXT,
		UNIQUE (beginning_at, finishing_at, film_id, cinema)
	)`,
}
