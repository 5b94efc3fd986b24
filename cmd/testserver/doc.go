// Command testserver runs the application server against a local MongoDB
// for manual and scripted integration testing.
//
//	testserver start                      # serve on http://localhost:30001/1
//	testserver start --port 30002 --drop-on-exit
//	testserver ping --url http://localhost:30001/1
//	testserver drop --database-uri mongodb://localhost:27017/parse-test
//
// Defaults come from MONGODB_PORT, VERBOSE and TESTSERVER_* variables, the
// .env file and config/testserver.json; flags win over all of them.
package main
