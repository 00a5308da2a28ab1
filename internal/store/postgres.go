package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/castlegate/chessd/pkg/chess"
	"github.com/castlegate/chessd/pkg/model"
)

// Open connects to Postgres and verifies the connection.
func Open(databaseURL string) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the tables if they do not exist. The game body
// is stored as a JSON text blob; the seat columns are indexed.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS userdata (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			email    TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS authdata (
			token    TEXT PRIMARY KEY,
			username TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS authdata_username_idx ON authdata (username)`,
		`CREATE TABLE IF NOT EXISTS gamedata (
			gameid        SERIAL PRIMARY KEY,
			whiteusername TEXT,
			blackusername TEXT,
			gamename      TEXT NOT NULL,
			game          TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS gamedata_white_idx ON gamedata (whiteusername)`,
		`CREATE INDEX IF NOT EXISTS gamedata_black_idx ON gamedata (blackusername)`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// PostgresGames is the relational game store.
type PostgresGames struct {
	db *sql.DB
}

func NewPostgresGames(db *sql.DB) *PostgresGames { return &PostgresGames{db: db} }

func (p *PostgresGames) Create(ctx context.Context, name string) (*model.GameRecord, error) {
	game := chess.NewGame()
	body, err := json.Marshal(game)
	if err != nil {
		return nil, fmt.Errorf("marshal game: %w", err)
	}
	var id int
	err = p.db.QueryRowContext(ctx,
		`INSERT INTO gamedata (gamename, game) VALUES ($1, $2) RETURNING gameid`,
		name, string(body),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert game: %w", err)
	}
	return &model.GameRecord{ID: id, GameName: name, Game: game}, nil
}

func (p *PostgresGames) Get(ctx context.Context, id int) (*model.GameRecord, error) {
	var (
		rec          model.GameRecord
		white, black sql.NullString
		body         string
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT gameid, whiteusername, blackusername, gamename, game FROM gamedata WHERE gameid = $1`,
		id,
	).Scan(&rec.ID, &white, &black, &rec.GameName, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select game: %w", err)
	}
	rec.WhiteUsername = white.String
	rec.BlackUsername = black.String
	rec.Game = chess.NewGame()
	if err := json.Unmarshal([]byte(body), rec.Game); err != nil {
		return nil, fmt.Errorf("unmarshal game body: %w", err)
	}
	return &rec, nil
}

func (p *PostgresGames) List(ctx context.Context) ([]model.GameInfo, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT gameid, whiteusername, blackusername, gamename FROM gamedata ORDER BY gameid`)
	if err != nil {
		return nil, fmt.Errorf("select games: %w", err)
	}
	defer rows.Close()

	infos := make([]model.GameInfo, 0, 16)
	for rows.Next() {
		var (
			info         model.GameInfo
			white, black sql.NullString
		)
		if err := rows.Scan(&info.GameID, &white, &black, &info.GameName); err != nil {
			return nil, fmt.Errorf("scan game row: %w", err)
		}
		info.WhiteUsername = white.String
		info.BlackUsername = black.String
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (p *PostgresGames) Update(ctx context.Context, rec *model.GameRecord, actingUser string, seat Seat) error {
	var (
		res sql.Result
		err error
	)
	switch seat {
	case SeatWhite, SeatBlack:
		col := "whiteusername"
		if seat == SeatBlack {
			col = "blackusername"
		}
		user := sql.NullString{String: actingUser, Valid: actingUser != ""}
		res, err = p.db.ExecContext(ctx,
			fmt.Sprintf(`UPDATE gamedata SET %s = $1 WHERE gameid = $2`, col), user, rec.ID)
	default: // SeatGameOver, SeatNone: persist the game body
		var body []byte
		body, err = json.Marshal(rec.Game)
		if err != nil {
			return fmt.Errorf("marshal game: %w", err)
		}
		res, err = p.db.ExecContext(ctx,
			`UPDATE gamedata SET game = $1 WHERE gameid = $2`, string(body), rec.ID)
	}
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresGames) Clear(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `TRUNCATE gamedata RESTART IDENTITY`)
	return err
}

// PostgresAuths is the relational auth token store.
type PostgresAuths struct {
	db *sql.DB
}

func NewPostgresAuths(db *sql.DB) *PostgresAuths { return &PostgresAuths{db: db} }

func (p *PostgresAuths) CreateAuth(ctx context.Context, username string) (string, error) {
	token := NewToken()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO authdata (token, username) VALUES ($1, $2)`, token, username)
	if err != nil {
		return "", fmt.Errorf("insert auth: %w", err)
	}
	return token, nil
}

func (p *PostgresAuths) GetAuth(ctx context.Context, token string) (string, error) {
	var username string
	err := p.db.QueryRowContext(ctx,
		`SELECT username FROM authdata WHERE token = $1`, token).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select auth: %w", err)
	}
	return username, nil
}

func (p *PostgresAuths) DeleteAuth(ctx context.Context, token string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM authdata WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete auth: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresAuths) Clear(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `TRUNCATE authdata`)
	return err
}

// PostgresUsers is the relational user store.
type PostgresUsers struct {
	db *sql.DB
}

func NewPostgresUsers(db *sql.DB) *PostgresUsers { return &PostgresUsers{db: db} }

func (p *PostgresUsers) CreateUser(ctx context.Context, user *model.UserRecord) error {
	res, err := p.db.ExecContext(ctx,
		`INSERT INTO userdata (username, password, email) VALUES ($1, $2, $3)
		 ON CONFLICT (username) DO NOTHING`,
		user.Username, user.HashedPassword, user.Email)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyTaken
	}
	return nil
}

func (p *PostgresUsers) GetUser(ctx context.Context, username string) (*model.UserRecord, error) {
	var user model.UserRecord
	err := p.db.QueryRowContext(ctx,
		`SELECT username, password, email FROM userdata WHERE username = $1`,
		username).Scan(&user.Username, &user.HashedPassword, &user.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &user, nil
}

func (p *PostgresUsers) Clear(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `TRUNCATE userdata`)
	return err
}
