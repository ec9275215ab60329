package config

// this holds the resolved configuration values from CLI
var (
	DB                 string // connection string for the database
	DataSource         string // telemetry source: serial, mqtt or synthetic
	SerialPort         string // serial device (e.g. /dev/ttyUSB0)
	SerialBaud         int    // serial baud rate
	MqttBroker         string // broker url (tcp://host:port or ssl://host:port)
	MqttUsername       string // broker username
	MqttPassword       string // broker password
	MqttTopic          string // topic carrying the raw telemetry frames
	PayloadLayout      string // packet layout format string
	BroadcastInterval  string // pacing interval of the pipeline loop
	ListenAddr         string // listen addr for the http/websocket server
	HistorySize        int    // number of enriched samples kept in memory
	NatsURL            string // when set, enriched samples are republished here
	NatsSubject        string // subject for republished samples
	SessionLabel       string // human label for the session created at startup
	WaitForServices    string // duration to wait for other services to be ready
	MigrationSourceURL string // location of migration files
	LogLevel           string // sets the log level (zap log level values)
	LogFormat          string // text vs json
	LogFilter          string // zapfilter rules for named loggers
)
