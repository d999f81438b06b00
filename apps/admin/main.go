package main

import (
	"fmt"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/grading"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
	appfs "github.com/trezcool/darasa/fs"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/database"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(os.Stdout, "ADMIN", conf)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Ping(db); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	// set up services
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(appfs.FS, conf, logger)

	mailSvc := emailsvc.NewConsoleService(conf, logger)
	if !conf.Debug {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, mailSvc, conf, logger)
	schoolSvc := school.NewService(sqlxrepos.NewSchoolRepository(db), logger)
	enrollSvc := enrollment.NewService(sqlxrepos.NewEnrollmentRepository(db), usrSvc, mailSvc, validate, conf, logger)

	// start CLI
	cli := commandLine{
		db:         db,
		engine:     conf.Database.Engine,
		out:        os.Stdout,
		usrRepo:    usrRepo,
		schoolSvc:  schoolSvc,
		enrollSvc:  enrollSvc,
		gradingSvc: grading.NewService(sqlxrepos.NewGradingRepository(db), enrollSvc, schoolSvc, logger),
	}
	err = cli.run(os.Args)
	if cerr := db.Close(); cerr != nil {
		logger.Error(fmt.Sprintf("closing database: %v", cerr), cerr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("%s: %v", os.Args[1], err), err)
		}
		os.Exit(1)
	}
}
