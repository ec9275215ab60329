//nolint:errcheck // testsetup
package tcpostgres

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mangue-baja/telemetry-service-go/pkg/db/migrate"
	database "github.com/mangue-baja/telemetry-service-go/pkg/db/postgres"
)

// SetupTestDb creates a pg connection pool for the telemetry testdatabase
func SetupTestDb() *pgxpool.Pool {
	ctx := context.Background()
	port, err := nat.NewPort("tcp", "5432")
	if err != nil {
		log.Fatal(err)
	}
	container, err := SetupPostgres(ctx,
		WithPort(port.Port()),
		WithInitialDatabase("postgres", "password", "postgres"),
		WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
		WithName("telemetry-service-test"),
	)
	if err != nil {
		log.Fatal(err)
	}
	containerPort, _ := container.MappedPort(ctx, port)
	host, _ := container.Host(ctx)
	dbURL := fmt.Sprintf("postgresql://postgres:password@%s:%s/postgres",
		host, containerPort.Port())

	if err = migrate.MigrateDB(dbURL); err != nil {
		log.Fatal(err)
	}

	return database.InitWithURL(dbURL)
}

func ClearTelemetryTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from telemetry")
}

func ClearSessionTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from sessions")
}

func ClearAllTables(pool *pgxpool.Pool) {
	ClearTelemetryTable(pool)
	ClearSessionTable(pool)
}
