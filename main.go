package main

import (
	"flag"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/micromdm/go4/env"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/taskq/v3"
	"github.com/vmihailenco/taskq/v3/redisq"

	"github.com/focusphone/mdmserver/apns"
	"github.com/focusphone/mdmserver/db"
	"github.com/focusphone/mdmserver/director"
	"github.com/focusphone/mdmserver/prometheus"
	"github.com/focusphone/mdmserver/types"
	"github.com/focusphone/mdmserver/utils"
)

func main() {
	var port string
	flag.StringVar(&port, "port", env.String("MDMSERVER_PORT", "8000"), "Port number to run mdmserver on.")
	flag.Bool("debug", env.Bool("MDMSERVER_DEBUG", false), "Enable debug output")
	flag.String("loglevel", env.String("MDMSERVER_LOGLEVEL", "warn"), "Log level. One of debug, info, warn, error")
	flag.String(
		"server-url",
		env.String("MDMSERVER_URL", "http://localhost:8000"),
		"Public base URL devices reach this server on.",
	)
	flag.String("db-host", env.String("MDMSERVER_DB_HOST", "localhost"), "Hostname or IP of the postgres instance")
	flag.String("db-port", env.String("MDMSERVER_DB_PORT", "5432"), "Port of the postgres instance")
	flag.String("db-username", env.String("MDMSERVER_DB_USERNAME", "postgres"), "Username used to connect to the postgres instance")
	flag.String("db-password", env.String("MDMSERVER_DB_PASSWORD", ""), "Password of the db user")
	flag.String("db-name", env.String("MDMSERVER_DB_NAME", "mdmserver"), "Name of the database to connect to")
	flag.String("db-sslmode", env.String("MDMSERVER_DB_SSLMODE", "disable"), "The SSL Mode to use to connect to postgres")
	flag.String("org-name", env.String("MDMSERVER_ORG_NAME", "FocusPhone"), "Organization name shown on the enrollment profile")
	flag.String("org-identifier", env.String("MDMSERVER_ORG_IDENTIFIER", "com.focusphone"), "Reverse-DNS prefix for payload identifiers")
	flag.String("topic", env.String("MDMSERVER_TOPIC", ""), "Management topic from the APNs push certificate")
	flag.String("push-cert", env.String("MDMSERVER_PUSH_CERT", ""), "Path to the APNs push certificate (.p12 or PEM)")
	flag.String("push-key", env.String("MDMSERVER_PUSH_KEY", ""), "Path to the APNs push key when using PEM")
	flag.String("push-key-password", env.String("MDMSERVER_PUSH_KEY_PASSWORD", ""), "Password for the p12 file or private key")
	flag.Bool("apns-production", env.Bool("MDMSERVER_APNS_PRODUCTION", true), "Use the production APNs environment")
	flag.String("redis-host", env.String("MDMSERVER_REDIS_HOST", "localhost"), "Hostname or IP of the redis instance")
	flag.String("redis-port", env.String("MDMSERVER_REDIS_PORT", "6379"), "Port of the redis instance")
	flag.String("redis-password", env.String("MDMSERVER_REDIS_PASSWORD", ""), "Password of the redis instance")

	flag.Parse()

	if utils.Topic() == "" {
		log.Fatal("Push topic missing. Exiting.")
	}

	if utils.PushCertPath() == "" {
		log.Fatal("Push certificate missing. Exiting.")
	}

	if err := db.Open(); err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	err := db.DB.AutoMigrate(
		&types.Device{},
		&types.Command{},
		&types.EnrollmentToken{},
		&types.RestrictionProfile{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	if err := director.SeedRestrictionProfiles(); err != nil {
		log.Fatalf("Failed to seed restriction profiles: %v", err)
	}

	err = apns.InitClient(
		utils.PushCertPath(),
		utils.PushKeyPath(),
		utils.PushKeyPassword(),
		utils.Topic(),
		utils.APNSProduction(),
	)
	if err != nil {
		log.Fatalf("Failed to initialize the APNs client: %v", err)
	}

	director.Metrics()
	prometheus.Metrics()

	queueFactory := redisq.NewFactory()
	pushQueue := queueFactory.RegisterQueue(&taskq.QueueOptions{
		Name:  "push-worker",
		Redis: director.RedisClient(),
	})

	r := mux.NewRouter()
	r.HandleFunc("/checkin", director.CheckinHandler).Methods("PUT", "POST")
	r.HandleFunc("/mdm", director.ServerHandler).Methods("PUT", "POST")
	r.HandleFunc("/enroll/{token}", director.EnrollProfileHandler).Methods("GET")
	r.HandleFunc("/healthcheck", director.HealthCheckHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/v1/tokens", utils.BasicAuth(director.IssueTokenHandler)).Methods("POST")
	r.HandleFunc("/v1/push/{udid}", utils.BasicAuth(director.PushDeviceHandler)).Methods("POST")
	r.HandleFunc(
		"/v1/commands/{udid}/deviceinfo",
		utils.BasicAuth(director.DeviceInformationHandler),
	).Methods("POST")
	http.Handle("/", r)

	log.Info("mdmserver is running, hold onto your butts...")

	go director.ScheduledCheckin(pushQueue)
	go director.ProcessScheduledCheckinQueue(pushQueue)

	log.Fatal(http.ListenAndServe(":"+port, nil))
}
