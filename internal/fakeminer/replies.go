package fakeminer

import "fmt"

// Canned replies of a typical device, used until SetReply overrides them.
var defaultReplies = map[string]string{
	"summary": `{"STATUS":[{"STATUS":"S","Msg":"Summary"}],"SUMMARY":[{"Elapsed":86400,"MHS av":102345678.25,"MHS 5s":101873500.5,` +
		`"Temperature":65.5,"Fan Speed In":4560,"Fan Speed Out":4530,"Power":3360,"Power Limit":3600,"Accepted":1520,` +
		`"Rejected":3,"Target Freq":585,"Factory GHS":112000,"Chip Temp Avg":78.25,"MAC":"C4:11:00:0A:1B:2C",` +
		`"Power Mode":"Normal","Uptime":90000,"Btminer Fast Boot":"disable"}],"id":1}`,
	"pools": `{"STATUS":[{"STATUS":"S","Msg":"2 Pool(s)"}],"POOLS":[` +
		`{"POOL":1,"URL":"stratum+tcp://pool.example:3333","Status":"Alive","Priority":0,"Quota":1,"Accepted":1520,"Rejected":3,"User":"acct.rack1","Stratum Active":true},` +
		`{"POOL":2,"URL":"stratum+tcp://backup.example:3333","Status":"Alive","Priority":1,"Quota":1,"Accepted":0,"Rejected":0,"User":"acct.rack1","Stratum Active":false}],"id":1}`,
	"devdetails": `{"STATUS":[{"STATUS":"S","Msg":"Device Details"}],"DEVDETAILS":[` +
		`{"DEVDETAILS":0,"Name":"SM","ID":0,"Driver":"bitmicro","Kernel":"","Model":"M30S+VE40"},` +
		`{"DEVDETAILS":1,"Name":"SM","ID":1,"Driver":"bitmicro","Kernel":"","Model":"M30S+VE40"}],"id":1}`,
	"get_psu": `{"STATUS":"S","When":1700000000,"Code":131,"Msg":{"name":"P221B","hw_version":"V01.00","sw_version":"V01.00.V01.03",` +
		`"model":"P221B","iin":"8718","vin":"22700","fan_speed":"6976","version":"1","serial_no":"PSU1234","vendor":"1"},"Description":""}`,
	"get_version": `{"STATUS":"S","When":1700000000,"Code":131,"Msg":{"api_ver":"2.0.5","fw_ver":"20230911.12.REL","platform":"H6OS","chip":"K210"},"Description":""}`,
	"status": `{"STATUS":"S","When":1700000000,"Code":131,"Msg":{"btmineroff":"false","Firmware Version":"'20230911.12.REL'"},"Description":""}`,
}

// writeCommands are only accepted encrypted.
var writeCommands = map[string]bool{
	"restart_btminer":           true,
	"reboot":                    true,
	"power_on":                  true,
	"power_off":                 true,
	"set_target_freq":           true,
	"set_power_pct":             true,
	"enable_btminer_fast_boot":  true,
	"disable_btminer_fast_boot": true,
}

func okReply() []byte {
	return []byte(`{"STATUS":"S","When":1700000000,"Code":131,"Msg":"API command OK","Description":""}`)
}

func errorReply(code int, msg string) []byte {
	return []byte(fmt.Sprintf(`{"STATUS":"E","When":1700000000,"Code":%d,"Msg":%q,"Description":""}`, code, msg))
}
