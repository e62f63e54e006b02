// Package influxdb records automation activity in InfluxDB.
//
// Every fired device trigger and every executed device action becomes a
// point in the device_automation measurement, tagged by integration domain,
// kind and entity. Writes are non-blocking and batched
// (influxdb.batch_size, influxdb.flush_interval); async write failures are
// delivered to the SetOnError callback.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAutomationEvent(influxdb.AutomationEvent{
//	    Type: influxdb.EventTrigger, Domain: "knx", Kind: "turned_on",
//	    EntityID: "light.kitchen", DeviceID: "dev-1",
//	})
//
// All methods are safe for concurrent use.
package influxdb
