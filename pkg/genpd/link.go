package genpd

// Link is a master/slave edge in the domain DAG: struct gpd_link's Go
// counterpart. Slave must be powered off before Master may be, and Master
// must be powered on before Slave can successfully power on.
type Link struct {
	Master *Domain
	Slave  *Domain
}
