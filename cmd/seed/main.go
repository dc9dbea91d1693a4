// Command seed populates a fresh database with a demo company, its contact
// tree, departments and employees, driving everything through the service
// layer so the seeded data has correct counters and contacts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/gartstein/hr/internal/hr/config"
	"github.com/gartstein/hr/internal/hr/controller"
	"github.com/gartstein/hr/internal/hr/db"
	"github.com/gartstein/hr/internal/hr/events"
	"github.com/gartstein/hr/internal/hr/lifecycle"
	"github.com/gartstein/hr/internal/hr/metrics"
	"github.com/gartstein/hr/internal/hr/models"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	companyName := flag.String("company", "Acme Inc.", "name of the demo company")
	perDepartment := flag.Int("per-department", 3, "employees to create per department")
	flag.Parse()

	cfg := config.MustLoad()
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck // nothing to do on a failed final flush

	appMetrics := metrics.NewMetrics(prometheus.NewRegistry())
	repo, err := db.NewRepository(&db.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		DBName:   cfg.Postgres.DBName,
		SSLMode:  cfg.Postgres.SSLMode,
	}, appMetrics)
	if err != nil {
		log.Fatal("failed to initialize database: ", err)
	}
	defer repo.Close()

	producer := events.NewProducer(cfg.Kafka.Brokers, logger, cfg.Kafka.Topic)
	defer producer.Close()

	provisioner := lifecycle.NewProvisioner(repo, logger, appMetrics)
	recalc := lifecycle.NewRecalculator(repo, logger, appMetrics)
	employeeSvc := controller.NewEmployeeService(repo, provisioner, recalc, producer, logger, appMetrics)
	departmentSvc := controller.NewDepartmentService(repo, recalc, logger)

	ctx := context.Background()
	if err := seed(ctx, repo, employeeSvc, departmentSvc, *companyName, *perDepartment); err != nil {
		logger.Fatal("seeding failed", zap.Error(err))
	}
	logger.Info("seeding complete", zap.String("company", *companyName))
}

func seed(
	ctx context.Context,
	repo *db.Repository,
	employeeSvc *controller.EmployeeService,
	departmentSvc *controller.DepartmentService,
	companyName string,
	perDepartment int,
) error {
	company := &models.Company{ID: uuid.New(), Name: companyName}
	if err := repo.CreateCompany(ctx, company); err != nil {
		return err
	}

	companyContact := &models.Contact{
		ID:        uuid.New(),
		Name:      companyName,
		IsCompany: true,
		CompanyID: &company.ID,
		Email:     "info@example.com",
		Phone:     "+1 555 0100",
		Active:    true,
	}
	if err := repo.CreateContact(ctx, companyContact); err != nil {
		return err
	}

	for _, deptName := range []string{"Engineering", "Sales", "Human Resources"} {
		department, err := departmentSvc.CreateDepartment(ctx, &models.Department{
			CompanyID: company.ID,
			Name:      deptName,
			Active:    true,
		})
		if err != nil {
			return err
		}

		for i := 0; i < perDepartment; i++ {
			_, err := employeeSvc.CreateEmployee(ctx, &models.Employee{
				CompanyID:    company.ID,
				Name:         demoName(deptName, i),
				DepartmentID: &department.ID,
				Active:       true,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func demoName(department string, i int) string {
	return fmt.Sprintf("%s Employee %d", department, i+1)
}
