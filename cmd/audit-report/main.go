package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

var (
	dsn   = flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN (default: env DATABASE_URL)")
	since = flag.Duration("since", 7*24*time.Hour, "Report window")
	top   = flag.Int("top", 10, "Number of rejected queries to list")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	from := time.Now().Add(-*since)
	fmt.Printf("Audit report since %s\n\n", from.Format(time.RFC3339))

	var uploads, segments int64
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(rows), 0)
		FROM pavelength.mapping_submissions
		WHERE created_at >= $1`, from).Scan(&uploads, &segments)
	if err != nil {
		fatalf("mapping submissions: %v", err)
	}
	fmt.Printf("Submitted mappings: %d (%d segments)\n\n", uploads, segments)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	rows, err := db.QueryContext(ctx, `
		SELECT outcome, COUNT(*)
		FROM pavelength.translation_attempts
		WHERE created_at >= $1
		GROUP BY outcome
		ORDER BY COUNT(*) DESC`, from)
	if err != nil {
		fatalf("outcomes: %v", err)
	}
	fmt.Fprintln(tw, "OUTCOME\tQUERIES")
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			fatalf("scan outcome: %v", err)
		}
		fmt.Fprintf(tw, "%s\t%d\n", outcome, n)
	}
	if err := rows.Err(); err != nil {
		fatalf("outcomes: %v", err)
	}
	rows.Close()
	tw.Flush()

	rows, err = db.QueryContext(ctx, `
		SELECT query, COUNT(*) AS n, MAX(error)
		FROM pavelength.translation_attempts
		WHERE created_at >= $1 AND outcome IN ('rejected', 'failed')
		GROUP BY query
		ORDER BY n DESC, query
		LIMIT $2`, from, *top)
	if err != nil {
		fatalf("rejected queries: %v", err)
	}
	defer rows.Close()

	fmt.Println()
	fmt.Fprintln(tw, "REJECTED QUERY\tCOUNT\tLAST ERROR")
	for rows.Next() {
		var q string
		var n int64
		var lastErr sql.NullString
		if err := rows.Scan(&q, &n, &lastErr); err != nil {
			fatalf("scan query: %v", err)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", q, n, lastErr.String)
	}
	if err := rows.Err(); err != nil {
		fatalf("rejected queries: %v", err)
	}
	tw.Flush()
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
