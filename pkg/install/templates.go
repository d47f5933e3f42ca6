package install

const applicationManifest = `class { 'puppetdb':
  database               => {{ .Database | squote }},
  manage_redhat_firewall => false,
  puppetdb_version       => {{ .Version | squote }},
}
`

const terminiManifest = `class { 'puppetdb::master::config':
  puppetdb_server   => {{ .Server | squote }},
  puppetdb_version  => {{ .Version | squote }},
}
`

const postgresManifest = `class { 'puppetdb::database::postgresql':
  manage_redhat_firewall => false,
}
`

const databaseIniManifest = `$database = {{ .Database | squote }}

class { 'puppetdb::server::database_ini':
  database => $database,
}
`

const sourceTerminiManifest = `include puppetdb::master::storeconfigs
class { 'puppetdb::master::puppetdb_conf':
  server => {{ .Server | squote }},
}
include puppetdb::master::routes
`
