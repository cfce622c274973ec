package neasmart

// Raw wire types of the vendor's installation endpoint. Kept verbatim for
// debugging; nothing outside this package sees them. The typed model lives
// in core/domain with every raw field stripped.

type rawInstallation struct {
	Unique        string            `json:"unique"`
	Name          string            `json:"name"`
	OutsideTemp   *int              `json:"outsideTemperature"`
	OperationMode int               `json:"operationMode"`
	Groups        []rawGroup        `json:"groups"`
	Controllers   []rawController   `json:"controllers"`
	MixedCircuits []rawMixedCircuit `json:"mixedCircuits"`
}

type rawGroup struct {
	ID    string    `json:"_id"`
	Name  string    `json:"groupName"`
	Zones []rawZone `json:"zones"`
}

type rawZone struct {
	ID       string       `json:"_id"`
	Number   int          `json:"number"`
	Name     string       `json:"name"`
	Channels []rawChannel `json:"channels"`
}

type rawChannel struct {
	ID               string `json:"_id"`
	ChannelZone      int    `json:"channelZone"`
	ControllerNumber int    `json:"controller"`
	Type             string `json:"type"`
	CurrentTemp      *int   `json:"currentTemperature"`
	Setpoint         *int   `json:"setpointTemperature"`
	Humidity         *int   `json:"humidity"`
	EnergyLevel      int    `json:"energyLevel"`
	Locked           bool   `json:"locked"`
	OperationMode    int    `json:"operationMode"`
}

type rawController struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

type rawMixedCircuit struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Setpoint *int   `json:"setpointTemperature"`
	Supply   *int   `json:"supplyTemperature"`
	Return   *int   `json:"returnTemperature"`
	PumpOn   bool   `json:"pumpOn"`
}
