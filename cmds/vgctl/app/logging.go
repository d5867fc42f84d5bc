package app

import (
	"strings"

	"github.com/mandelsoft/logging"
	"github.com/mandelsoft/logging/logrusl"
	"github.com/mandelsoft/logging/logrusr"
)

var REALM = logging.DefineRealm("vergraph/vgctl", "version graph command line tool")

func configureLogging(lctx logging.Context, level string) error {
	l, err := logging.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	logcfg := logrusl.Human(true)
	lctx.SetBaseLogger(logrusr.New(logcfg.NewLogrus()))
	lctx.AddRule(logging.NewConditionRule(l, logging.NewRealmPrefix("vergraph")))
	return nil
}
