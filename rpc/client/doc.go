// Package client implements a RESP client for sKV servers.
//
// A Client keeps a small pool of connections to one endpoint and distributes
// commands over them round robin. Transport failures are retried with an
// exponential backoff, a failed connection is re-established on its next use.
//
// Usage Example:
//
//	c, err := client.Dial(common.ClientConfig{
//	  Endpoint:      "localhost:6379",
//	  TimeoutSecond: 5,
//	  RetryCount:    3,
//	  Connections:   4,
//	})
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer c.Close()
//
//	v, err := c.Do("set", "key", "value")
//	fmt.Println(v) // OK
//
// Note that a retried write is not deduplicated by the server: if the reply
// of a command was lost the command may run twice.
package client
