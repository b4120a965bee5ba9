// Command-line tool to clean the database by dropping all tables in the public schema.
package main

import (
	"bufio"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/lib/pq"

	"Fixer-backend/internal/config"
)

const dropAll = `
DO $$
	DECLARE
		r RECORD;
	BEGIN
		FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
			EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
		END LOOP;
	END $$;
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Printf("WARNING: This command will DROP ALL TABLES in the 'public' schema of database %q.\n", cfg.Database.Name)
	fmt.Println("This action is irreversible. Do you want to continue? (yes/no): ")

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
	if strings.TrimSpace(strings.ToLower(input)) != "yes" {
		fmt.Println("Operation cancelled.")
		return
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(dropAll); err != nil {
		log.Fatalf("failed to execute drop command: %v", err)
	}

	fmt.Println("All tables dropped successfully.")
}
