package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/vetclinic-scheduling/internal/appointment"
	"github.com/hackgods/vetclinic-scheduling/internal/db"
	"github.com/hackgods/vetclinic-scheduling/internal/logging"
	"github.com/hackgods/vetclinic-scheduling/internal/schedule"
)

var log = logging.New("dev", "info")

func main() {
	log.Info("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.WithError(err).Fatal("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.WithError(err).Fatal("migrate")
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedStaff(context.Background(), pool, 12); err != nil {
		log.WithError(err).Fatal("seed staff")
	}
	if err := seedClients(context.Background(), pool, 2000); err != nil {
		log.WithError(err).Fatal("seed clients")
	}

	log.Info("seed complete")
}

// shifts are the working windows handed out to seeded staff, in minutes since midnight.
var shifts = []schedule.Window{
	{Start: 8 * 60, End: 16 * 60},
	{Start: 9 * 60, End: 17 * 60},
	{Start: 10 * 60, End: 18 * 60},
	{Start: 12 * 60, End: 20 * 60},
}

func availabilityFor() []string {
	var out []string
	for day := time.Monday; day <= time.Saturday; day++ {
		// most staff work five or six days
		if day == time.Saturday && gofakeit.Bool() {
			continue
		}
		if gofakeit.Number(0, 9) == 0 {
			continue
		}
		out = append(out, schedule.FormatAvailability(day, shifts[gofakeit.Number(0, len(shifts)-1)]))
	}
	return out
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool, vets int) error {
	log.WithField("veterinarians", vets).Info("seeding staff")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	roles := make([]string, 0, vets+4)
	for i := 0; i < vets; i++ {
		roles = append(roles, appointment.RoleVeterinarian)
	}
	roles = append(roles, appointment.RoleSecretary, appointment.RoleSecretary, appointment.RoleTechnician, appointment.RoleTechnician)

	for _, role := range roles {
		name := gofakeit.Name()
		if role == appointment.RoleVeterinarian {
			name = "Dr. " + name
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO staff (id, name, email, role, active, availability, created_at, updated_at)
			VALUES ($1, $2, $3, $4, true, $5, now(), now())
		`, uuid.New(), name, gofakeit.Email(), role, availabilityFor())
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Info("staff seeded")
	return nil
}

func seedClients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.WithField("count", count).Info("seeding clients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			clientID := uuid.New()

			_, err := tx.Exec(ctx, `
				INSERT INTO clients (id, name, email, phone, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, clientID, gofakeit.Name(), gofakeit.Email(), gofakeit.Phone())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			pets := gofakeit.Number(1, 3)
			for p := 0; p < pets; p++ {
				_, err := tx.Exec(ctx, `
					INSERT INTO pets (id, owner_id, name, species, created_at, updated_at)
					VALUES ($1, $2, $3, $4, now(), now())
				`, uuid.New(), clientID, gofakeit.PetName(), gofakeit.AnimalType())
				if err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.WithFields(logrus.Fields{"seeded": end, "total": count}).Info("clients seeded")
	}

	return nil
}
