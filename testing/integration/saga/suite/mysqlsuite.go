package suite

import (
	"database/sql"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/suite"
)

const mysqlConnectionEnv = "MYSQL_CONNECTION"

// MysqlSuite connects to the mysql instance pointed at by MYSQL_CONNECTION,
// e.g. "sagaflow:sagaflow@tcp(127.0.0.1:3306)/sagaflow?parseTime=true".
// The whole suite is skipped when the variable is not set.
type MysqlSuite struct {
	suite.Suite
	db *sql.DB
}

func (s *MysqlSuite) SetupSuite() {
	dsn := os.Getenv(mysqlConnectionEnv)
	if dsn == "" {
		s.T().Skipf("%s is not set, skipping mysql integration suite", mysqlConnectionEnv)
	}

	db, err := sql.Open("mysql", dsn)
	s.Require().NoError(err)
	s.Require().NoError(db.Ping())

	s.db = db
}

func (s *MysqlSuite) Connection() *sql.DB {
	return s.db
}

func (s *MysqlSuite) TearDownSuite() {
	if s.db == nil {
		return
	}

	_, err := s.db.Exec("DROP TABLE IF EXISTS saga_execution_step;")
	s.Assert().NoError(err)

	_, err = s.db.Exec("DROP TABLE IF EXISTS saga_execution;")
	s.Assert().NoError(err)

	s.Assert().NoError(s.db.Close())
}
