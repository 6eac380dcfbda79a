package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/mycelian/contacts-service/contactsservice"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}
	if err := contactsservice.Run(); err != nil {
		log.Error().Err(err).Msg("contacts-service exited with error")
		os.Exit(1)
	}
}
